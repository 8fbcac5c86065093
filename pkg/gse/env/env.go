package env

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/calibration"
	"github.com/robotalks/gse.go/pkg/daq"
	"github.com/robotalks/gse.go/pkg/fc/link"
	fx "github.com/robotalks/gse.go/pkg/framework"
	"github.com/robotalks/gse.go/pkg/gse"
	"github.com/robotalks/gse.go/pkg/telem"
	"github.com/robotalks/gse.go/pkg/telem/mqtt"
)

// Env holds the assembled GSE services.
type Env struct {
	Config    *Config
	Client    telem.Client
	Directory *calibration.Directory
	Running   *gse.RunFlag
	Ingest    *gse.Ingest
	Listener  *gse.Listener
	Command   *gse.Command
	Watchdog  *gse.Watchdog
	Bridge    *gse.FCBridge
	Link      *link.Link

	closers []io.Closer
}

// Retry calls fn until it succeeds, waiting delay between attempts.
func Retry(ctx context.Context, delay time.Duration, what string, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		glog.Warningf("%s: %v, retry in %s", what, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// NewEnv connects to the telemetry broker, retrying until it is reachable,
// and builds the services with the configured DAQ.
func (c *Config) NewEnv(ctx context.Context) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	client, err := mqtt.NewClient(c.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker URL: %w", err)
	}
	err = Retry(ctx, c.ConnectRetryDelay, "connect telemetry", func() error {
		return client.Connect(ctx)
	})
	if err != nil {
		return nil, err
	}
	dev := daq.NewSim()
	dev.SampleRate = c.SampleRate
	env, err := c.Build(ctx, client, dev, dev)
	if err != nil {
		client.Close()
		return nil, err
	}
	env.closers = append(env.closers, client)
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(ctx context.Context) *Env {
	env, err := c.NewEnv(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Build resolves the channels and assembles the services on a connected client.
// The analog index channel is retried until it exists.
func (c *Config) Build(ctx context.Context, client telem.Client, reader daq.Reader, writer daq.Writer) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	policy, _ := gse.ParseEmptyPolicy(c.EmptyPolicy)
	subject := c.Subject
	if subject == "" {
		subject = "gse:" + MachineID()
	}

	if c.Provision {
		if err := c.provision(ctx, client); err != nil {
			return nil, err
		}
	}

	var index telem.Channel
	err := Retry(ctx, c.ConnectRetryDelay, "retrieve "+c.AnalogIndex, func() (err error) {
		index, err = client.RetrieveChannel(ctx, c.AnalogIndex)
		return
	})
	if err != nil {
		return nil, err
	}
	analog, err := client.RetrieveChannels(ctx, ChannelNames(c.AnalogPattern, c.AnalogChannels)...)
	if err != nil {
		return nil, fmt.Errorf("analog channels: %w", err)
	}
	trigger, err := client.RetrieveChannel(ctx, c.Trigger)
	if err != nil {
		return nil, fmt.Errorf("trigger channel: %w", err)
	}
	controls, err := client.RetrieveChannels(ctx, ChannelNames(c.ControlPattern, c.Valves)...)
	if err != nil {
		return nil, fmt.Errorf("control channels: %w", err)
	}
	ackIndex, err := client.RetrieveChannel(ctx, c.AckIndex)
	if err != nil {
		return nil, fmt.Errorf("ack index channel: %w", err)
	}
	acks, err := client.RetrieveChannels(ctx, ChannelNames(c.AckPattern, c.Valves)...)
	if err != nil {
		return nil, fmt.Errorf("ack channels: %w", err)
	}

	env := &Env{
		Config:    c,
		Client:    client,
		Directory: calibration.NewDirectory(),
		Running:   gse.NewRunFlag(),
	}
	analogWriter, err := env.openWriter(ctx, subject+":ai", append([]telem.Channel{index}, analog...))
	if err != nil {
		return nil, err
	}
	ackWriter, err := env.openWriter(ctx, subject+":ack", append([]telem.Channel{ackIndex}, acks...))
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Ingest = &gse.Ingest{
		Config: gse.IngestConfig{
			Index:       index,
			Channels:    analog,
			BatchSize:   c.BatchSize,
			CommitEvery: c.CommitEvery,
			EmptyPolicy: policy,
		},
		Reader:    reader,
		Writer:    analogWriter,
		Directory: env.Directory,
		Running:   env.Running,
	}
	env.Listener = &gse.Listener{
		Client:    client,
		Channels:  analog,
		Trigger:   trigger,
		Directory: env.Directory,
	}
	env.Command = &gse.Command{
		Config: gse.CommandConfig{
			Controls:        controls,
			AckIndex:        ackIndex,
			Acks:            acks,
			ShutdownRetries: c.ShutdownRetries,
		},
		Client:  client,
		DAQ:     writer,
		Writer:  ackWriter,
		State:   gse.NewAckState(c.Valves, time.Now()),
		Running: env.Running,
	}
	env.Watchdog = &gse.Watchdog{
		State:     env.Command.State,
		Committer: env.Command,
		Interval:  c.WatchdogInterval,
		Threshold: c.WatchdogThreshold,
	}

	if c.FCLinkURL != "" {
		if err = env.setupFC(ctx, subject+":fc"); err != nil {
			env.Close()
			return nil, err
		}
	}
	return env, nil
}

func (e *Env) setupFC(ctx context.Context, subject string) error {
	channels, err := e.Client.RetrieveChannels(ctx, e.Config.FCIndex, e.Config.FCSample)
	if err != nil {
		return fmt.Errorf("FC channels: %w", err)
	}
	w, err := e.openWriter(ctx, subject, channels)
	if err != nil {
		return err
	}
	e.Bridge = &gse.FCBridge{Writer: w, Index: channels[0], Sample: channels[1]}
	rw, err := link.Dial(ctx, e.Config.FCLinkURL)
	if err != nil {
		return fmt.Errorf("FC link: %w", err)
	}
	e.Link = link.New(rw, e.Bridge.Decoder())
	e.closers = append(e.closers, e.Link)
	return nil
}

func (e *Env) openWriter(ctx context.Context, subject string, channels []telem.Channel) (telem.Writer, error) {
	w, err := e.Client.OpenWriter(ctx, telem.WriterConfig{
		Keys:        telem.Keys(channels),
		Start:       telem.Now(),
		Authorities: []telem.Authority{telem.AbsoluteAuthority},
		Subject:     subject,
	})
	if err != nil {
		return nil, fmt.Errorf("open writer %s: %w", subject, err)
	}
	e.closers = append(e.closers, w)
	return w, nil
}

func (c *Config) provision(ctx context.Context, client telem.Client) error {
	admin, ok := client.(telem.Admin)
	if !ok {
		return fmt.Errorf("telemetry client can't provision channels")
	}
	indexes, err := admin.CreateChannels(ctx,
		telem.Channel{Name: c.AnalogIndex, DataType: telem.TimeStamp, IsIndex: true},
		telem.Channel{Name: c.AckIndex, DataType: telem.TimeStamp, IsIndex: true},
		telem.Channel{Name: c.FCIndex, DataType: telem.TimeStamp, IsIndex: true},
		telem.Channel{Name: c.Trigger, DataType: telem.TimeStamp, IsIndex: true},
	)
	if err != nil {
		return err
	}
	var channels []telem.Channel
	add := func(names []string, dt telem.DataType, index telem.ChannelKey) {
		for _, name := range names {
			channels = append(channels, telem.Channel{Name: name, DataType: dt, Index: index})
		}
	}
	add(ChannelNames(c.AnalogPattern, c.AnalogChannels), telem.Float32, indexes[0].Key)
	add(ChannelNames(c.ControlPattern, c.Valves), telem.Uint8, 0)
	add(ChannelNames(c.AckPattern, c.Valves), telem.Uint8, indexes[1].Key)
	add([]string{c.FCSample}, telem.Float32, indexes[2].Key)
	_, err = admin.CreateChannels(ctx, channels...)
	return err
}

// Runnables returns the services to run.
func (e *Env) Runnables() []fx.Runnable {
	runnables := []fx.Runnable{
		fx.NamedRun("ingest", e.Ingest),
		fx.NamedRun("calibration", e.Listener),
		fx.NamedRun("command", e.Command),
		fx.NamedRun("watchdog", e.Watchdog),
	}
	if e.Link != nil {
		runnables = append(runnables, fx.NamedRun("fc-link", e.Link))
	}
	return runnables
}

// Close releases writers, links and the client.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}
