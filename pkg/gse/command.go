package gse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/daq"
	fx "github.com/robotalks/gse.go/pkg/framework"
	"github.com/robotalks/gse.go/pkg/telem"
)

// AllValves selects every digital output.
const AllValves uint32 = 0xFFFFFFFF

// DefaultShutdownRetries bounds the close-all writes on shutdown.
const DefaultShutdownRetries = 10

// CommandConfig configures Command. Valve i is controlled by Controls[i]
// and acknowledged on Acks[i].
type CommandConfig struct {
	Controls        []telem.Channel
	AckIndex        telem.Channel
	Acks            []telem.Channel
	ShutdownRetries int
}

// Command applies valve setpoints streamed from the control channels
// and publishes the resulting valve states as acks.
type Command struct {
	Config  CommandConfig
	Client  telem.Client
	DAQ     daq.Writer
	Writer  telem.Writer
	State   *AckState
	Running *RunFlag

	// writeLock serializes the DAQ write path.
	writeLock sync.Mutex
	// ackLock serializes the ack writer shared with the watchdog.
	ackLock sync.Mutex

	lock     sync.Mutex
	streamer telem.Streamer
	stopped  bool
}

// Run implements Runnable. When the loop ends before ctx is canceled,
// Run holds until ctx is done and then stops, so the valves are always
// closed on shutdown.
func (c *Command) Run(ctx context.Context) error {
	err := fx.RunStopper(ctx, c, func() error { return c.run(ctx) })
	if !c.Stopped() {
		if err != nil {
			glog.Errorf("command loop stopped: %v", err)
		}
		<-ctx.Done()
		c.Stop()
	}
	return err
}

// Stopped tells whether Stop has been called.
func (c *Command) Stopped() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.stopped
}

// Stop closes the control stream, clears the running flag and closes
// all valves, retrying until the hardware confirms or retries run out.
func (c *Command) Stop() {
	c.lock.Lock()
	c.stopped = true
	s := c.streamer
	c.lock.Unlock()
	if s != nil {
		s.CloseSend()
	}
	c.Running.Set(false)

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if err := c.closeAll(); err != nil {
		glog.Errorf("close all valves: %v", err)
	}
}

// Commit commits the ack writer.
func (c *Command) Commit() error {
	c.ackLock.Lock()
	defer c.ackLock.Unlock()
	return c.Writer.Commit()
}

func (c *Command) closeAll() error {
	retries := c.Config.ShutdownRetries
	if retries <= 0 {
		retries = DefaultShutdownRetries
	}
	var err error
	for n := 1; n <= retries; n++ {
		var state uint32
		if state, err = c.DAQ.WriteDigital(AllValves, 0); err == nil && state == 0 {
			glog.Info("all valves closed")
			return nil
		}
		if err == nil {
			err = fmt.Errorf("valves still open: %032b", state)
		}
		glog.Warningf("close all valves attempt %d/%d: %v", n, retries, err)
	}
	return err
}

func (c *Command) run(ctx context.Context) error {
	s, err := c.Client.OpenStreamer(ctx, telem.StreamerConfig{
		Keys:  telem.Keys(c.Config.Controls),
		Start: telem.Now(),
	})
	if err != nil {
		return err
	}
	c.lock.Lock()
	stopped := c.stopped
	c.streamer = s
	c.lock.Unlock()
	defer s.CloseSend()
	if stopped {
		return nil
	}

	for {
		f, err := s.Read()
		if errors.Is(err, telem.ErrStreamClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err = c.Apply(f); err != nil {
			return err
		}
	}
}

// Masks computes the selection and setpoint masks of a control frame.
// A valve is selected when its column is present, and set when the
// latest sample in the column is non-zero.
func (c *Command) Masks(f telem.Frame) (sel, set uint32) {
	for col, key := range f.Keys {
		series := f.Series[col]
		if series.Len() == 0 {
			continue
		}
		for valve, ch := range c.Config.Controls {
			if ch.Key != key {
				continue
			}
			bit := uint32(1) << uint(valve)
			sel |= bit
			if series.Float64At(series.Len()-1) != 0 {
				set |= bit
			}
			break
		}
	}
	return
}

// Apply writes one control frame to the DAQ and publishes the ack.
func (c *Command) Apply(f telem.Frame) error {
	sel, set := c.Masks(f)
	c.writeLock.Lock()
	if !c.Running.Running() {
		c.writeLock.Unlock()
		return nil
	}
	state, err := c.DAQ.WriteDigital(sel, set)
	c.writeLock.Unlock()
	if err != nil {
		return fmt.Errorf("write digital: %w", err)
	}
	glog.V(2).Infof("valves sel=%032b set=%032b state=%032b", sel, set, state)

	if err = c.writeAck(state); err != nil {
		return fmt.Errorf("write ack: %w", err)
	}
	c.State.Record(state)
	return nil
}

func (c *Command) writeAck(state uint32) error {
	var f telem.Frame
	f.Append(c.Config.AckIndex.Key, telem.TimeStampSeries([]telem.Nanos{telem.Now()}))
	for valve, ch := range c.Config.Acks {
		var v uint8
		if state&(1<<uint(valve)) != 0 {
			v = 1
		}
		f.Append(ch.Key, telem.Uint8Series([]uint8{v}))
	}
	c.ackLock.Lock()
	defer c.ackLock.Unlock()
	return c.Writer.Write(f)
}
