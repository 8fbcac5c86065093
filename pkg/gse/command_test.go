package gse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gse.go/pkg/daq"
	"github.com/robotalks/gse.go/pkg/telem"
	"github.com/robotalks/gse.go/pkg/telem/memory"
)

const testValves = 24

func newTestCommand(t *testing.T, hub *memory.Hub, dw daq.Writer) *Command {
	return &Command{
		Config: CommandConfig{
			Controls: createChannels(t, hub, "gse_doc_%d", testValves, telem.Uint8),
			AckIndex: createChannel(t, hub, "gse_doa_time", telem.TimeStamp),
			Acks:     createChannels(t, hub, "gse_doa_%d", testValves, telem.Uint8),
		},
		Client:  hub,
		DAQ:     dw,
		Writer:  openWriter(t, hub, "ack"),
		State:   NewAckState(testValves, time.Now()),
		Running: NewRunFlag(),
	}
}

func TestCommandAck(t *testing.T) {
	hub := memory.NewHub()
	dw := &fakeWriter{}
	c := newTestCommand(t, hub, dw)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	waitStreamers(t, hub, 1)

	var f telem.Frame
	f.Append(c.Config.Controls[5].Key, telem.Uint8Series([]uint8{1}))
	f.Append(c.Config.Controls[15].Key, telem.Uint8Series([]uint8{1}))
	require.NoError(t, openWriter(t, hub, "console").Write(f))

	require.Eventually(t, func() bool { return len(hub.Frames("ack")) == 1 }, 5*time.Second, time.Millisecond)
	ack := hub.Frames("ack")[0]
	require.Equal(t, testValves+1, ack.Len())
	require.Equal(t, c.Config.AckIndex.Key, ack.Keys[0])
	for valve, ch := range c.Config.Acks {
		series, ok := ack.Get(ch.Key)
		require.True(t, ok)
		require.Equal(t, 1, series.Len())
		expected := 0.0
		if valve == 5 || valve == 15 {
			expected = 1
		}
		require.Equalf(t, expected, series.Float64At(0), "valve %d", valve)
	}
	require.True(t, c.State.Acked())
	require.Equal(t, []digitalWrite{{sel: 1<<5 | 1<<15, set: 1<<5 | 1<<15}}, dw.Writes())

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command not stopped")
	}
	writes := dw.Writes()
	require.Equal(t, digitalWrite{sel: AllValves, set: 0}, writes[len(writes)-1])
	require.False(t, c.Running.Running())
	require.Equal(t, 0, hub.Streamers())
}

func TestCommandMasks(t *testing.T) {
	hub := memory.NewHub()
	c := newTestCommand(t, hub, &fakeWriter{})

	var f telem.Frame
	f.Append(c.Config.Controls[0].Key, telem.Float32Series([]float32{1, 0}))
	f.Append(c.Config.Controls[1].Key, telem.Float32Series([]float32{0, 1}))
	f.Append(c.Config.Controls[2].Key, telem.Float32Series(nil))
	f.Append(c.Config.Acks[3].Key, telem.Uint8Series([]uint8{1}))
	f.Append(c.Config.Controls[23].Key, telem.Uint8Series([]uint8{3}))
	sel, set := c.Masks(f)
	require.Equal(t, uint32(1|1<<1|1<<23), sel)
	require.Equal(t, uint32(1<<1|1<<23), set)
}

func TestCommandCloseValves(t *testing.T) {
	hub := memory.NewHub()
	dw := &fakeWriter{}
	c := newTestCommand(t, hub, dw)

	var open telem.Frame
	open.Append(c.Config.Controls[3].Key, telem.Uint8Series([]uint8{1}))
	require.NoError(t, c.Apply(open))
	c.Stop()
	require.Equal(t, []digitalWrite{
		{sel: 1 << 3, set: 1 << 3},
		{sel: AllValves, set: 0},
	}, dw.Writes())

	// no writes after stop.
	require.NoError(t, c.Apply(open))
	require.Len(t, dw.Writes(), 2)
}

func TestCommandShutdownRetries(t *testing.T) {
	hub := memory.NewHub()
	dw := &fakeWriter{stuck: 1 << 7}
	c := newTestCommand(t, hub, dw)
	c.Config.ShutdownRetries = 3
	c.Stop()
	writes := dw.Writes()
	require.Len(t, writes, 3)
	for _, w := range writes {
		require.Equal(t, digitalWrite{sel: AllValves, set: 0}, w)
	}

	dw = &fakeWriter{fail: daq.ErrHardware}
	c = newTestCommand(t, memory.NewHub(), dw)
	c.Stop()
	require.Len(t, dw.Writes(), DefaultShutdownRetries)
}

func TestCommandHardwareFailure(t *testing.T) {
	hub := memory.NewHub()
	c := newTestCommand(t, hub, &fakeWriter{fail: daq.ErrHardware})
	var f telem.Frame
	f.Append(c.Config.Controls[0].Key, telem.Uint8Series([]uint8{1}))
	err := c.Apply(f)
	require.True(t, errors.Is(err, daq.ErrHardware))
	require.False(t, c.State.Acked())
	require.Empty(t, hub.Frames("ack"))
}

func TestCommandAckWriteFailure(t *testing.T) {
	hub := memory.NewHub()
	c := newTestCommand(t, hub, &fakeWriter{})
	require.NoError(t, c.Writer.Close())
	var f telem.Frame
	f.Append(c.Config.Controls[0].Key, telem.Uint8Series([]uint8{1}))
	require.ErrorIs(t, c.Apply(f), telem.ErrWriterClosed)
	require.False(t, c.State.Acked())
}

func TestCommandStopBeforeStream(t *testing.T) {
	hub := memory.NewHub()
	c := newTestCommand(t, hub, &fakeWriter{})
	c.Stop()
	require.NoError(t, c.run(context.Background()))
	require.Equal(t, 0, hub.Streamers())
}

func TestCommandClosesValvesAfterLoopFailure(t *testing.T) {
	hub := memory.NewHub()
	dw := &fakeWriter{}
	c := newTestCommand(t, hub, dw)
	require.NoError(t, c.Writer.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	waitStreamers(t, hub, 1)

	require.NoError(t, openWriter(t, hub, "console").Write(controlFrame(c, 3)))
	// the failed loop releases its stream but keeps Run pending.
	waitStreamers(t, hub, 0)
	require.Equal(t, []digitalWrite{{sel: 1 << 3, set: 1 << 3}}, dw.Writes())
	select {
	case err := <-errCh:
		t.Fatalf("command returned before shutdown: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	require.False(t, c.Stopped())

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, telem.ErrWriterClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("command not stopped")
	}
	require.Equal(t, []digitalWrite{
		{sel: 1 << 3, set: 1 << 3},
		{sel: AllValves, set: 0},
	}, dw.Writes())
	require.False(t, c.Running.Running())
}
