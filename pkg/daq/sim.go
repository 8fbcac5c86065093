package daq

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultSampleRate is the simulated analog sample rate in Hz.
const DefaultSampleRate = 200

// SimPollInterval is the longest sleep while waiting for a batch.
const SimPollInterval = 5 * time.Millisecond

// SignalFunc generates the value of channel at time t.
type SignalFunc func(channel int, t time.Time) float32

// Sim is a simulated DAQ device: a paced analog generator and a digital
// output register.
type Sim struct {
	SampleRate float64
	Signal     SignalFunc
	// Now and Sleep are replaced by tests.
	Now   func() time.Time
	Sleep func(time.Duration)

	lock    sync.Mutex
	started bool
	next    time.Time
	valves  uint32
}

// NewSim creates a Sim with default settings.
func NewSim() *Sim {
	return &Sim{
		SampleRate: DefaultSampleRate,
		Signal:     RestingSignal,
		Now:        time.Now,
		Sleep:      time.Sleep,
	}
}

// RestingSignal produces a slow oscillation around 0.5V.
func RestingSignal(channel int, t time.Time) float32 {
	phase := float64(t.UnixNano())/float64(time.Second) + float64(channel)
	return float32(0.5 + 0.01*math.Sin(phase))
}

// Start implements Reader.
func (s *Sim) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.started = true
	s.next = s.Now()
	glog.Infof("sim daq started at %g Hz", s.SampleRate)
	return nil
}

// Stop implements Reader.
func (s *Sim) Stop() error {
	s.lock.Lock()
	s.started = false
	s.lock.Unlock()
	return nil
}

// ReadAnalog implements Reader.
// Sample timestamps are spaced by the sample period and the call returns
// once the last sample of the batch is due.
func (s *Sim) ReadAnalog(m *SampleMatrix, times []int64) error {
	if len(times) != m.Cols() {
		return fmt.Errorf("%w: %d timestamps for %d samples", ErrHardware, len(times), m.Cols())
	}
	s.lock.Lock()
	if !s.started {
		s.lock.Unlock()
		return fmt.Errorf("%w: analog input not started", ErrHardware)
	}
	period := time.Duration(float64(time.Second) / s.SampleRate)
	start := s.next
	s.next = start.Add(period * time.Duration(m.Cols()))
	s.lock.Unlock()

	last := start.Add(period * time.Duration(m.Cols()-1))
	for {
		remaining := last.Sub(s.Now())
		if remaining <= 0 {
			break
		}
		if remaining > SimPollInterval {
			remaining = SimPollInterval
		}
		s.Sleep(remaining)
	}

	for j := range times {
		ts := start.Add(period * time.Duration(j))
		times[j] = ts.UnixNano()
		for i := 0; i < m.Rows(); i++ {
			m.Set(i, j, s.Signal(i, ts))
		}
	}
	return nil
}

// ReadDigital implements Reader.
func (s *Sim) ReadDigital() (uint32, int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.valves, s.Now().UnixNano(), nil
}

// WriteDigital implements Writer.
func (s *Sim) WriteDigital(sel, set uint32) (uint32, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.valves = ApplyDigital(s.valves, sel, set)
	glog.V(2).Infof("sim daq valves %032b", s.valves)
	return s.valves, nil
}
