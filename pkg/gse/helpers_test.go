package gse

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gse.go/pkg/daq"
	"github.com/robotalks/gse.go/pkg/telem"
	"github.com/robotalks/gse.go/pkg/telem/memory"
)

func createChannels(t *testing.T, hub *memory.Hub, pattern string, count int, dt telem.DataType) []telem.Channel {
	channels := make([]telem.Channel, count)
	for i := range channels {
		channels[i] = telem.Channel{Name: fmt.Sprintf(pattern, i+1), DataType: dt}
	}
	created, err := hub.CreateChannels(context.Background(), channels...)
	require.NoError(t, err)
	return created
}

func createChannel(t *testing.T, hub *memory.Hub, name string, dt telem.DataType) telem.Channel {
	created, err := hub.CreateChannels(context.Background(), telem.Channel{Name: name, DataType: dt, IsIndex: dt == telem.TimeStamp})
	require.NoError(t, err)
	return created[0]
}

func openWriter(t *testing.T, hub *memory.Hub, subject string) telem.Writer {
	w, err := hub.OpenWriter(context.Background(), telem.WriterConfig{Subject: subject})
	require.NoError(t, err)
	return w
}

func waitStreamers(t *testing.T, hub *memory.Hub, count int) {
	require.Eventually(t, func() bool { return hub.Streamers() == count }, 5*time.Second, time.Millisecond)
}

// fakeReader fills row i with values[i].
type fakeReader struct {
	lock    sync.Mutex
	values  []float32
	started bool
	fail    error
	reads   int
	delay   time.Duration
	// onRead runs at the start of every ReadAnalog.
	onRead func()
}

func (r *fakeReader) Start() error {
	r.lock.Lock()
	r.started = true
	r.lock.Unlock()
	return nil
}

func (r *fakeReader) Stop() error {
	r.lock.Lock()
	r.started = false
	r.lock.Unlock()
	return nil
}

func (r *fakeReader) ReadAnalog(m *daq.SampleMatrix, times []int64) error {
	if r.onRead != nil {
		r.onRead()
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if !r.started {
		return fmt.Errorf("%w: stopped", daq.ErrHardware)
	}
	for j := range times {
		for i := 0; i < m.Rows(); i++ {
			m.Set(i, j, r.values[i])
		}
		times[j] = int64(r.reads*len(times) + j)
	}
	r.reads++
	return nil
}

func (r *fakeReader) ReadDigital() (uint32, int64, error) {
	return 0, 0, nil
}

type digitalWrite struct {
	sel, set uint32
}

// fakeWriter records writes and keeps stuck bits set.
type fakeWriter struct {
	lock   sync.Mutex
	writes []digitalWrite
	state  uint32
	stuck  uint32
	fail   error
}

func (w *fakeWriter) WriteDigital(sel, set uint32) (uint32, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.writes = append(w.writes, digitalWrite{sel: sel, set: set})
	if w.fail != nil {
		return 0, w.fail
	}
	w.state = daq.ApplyDigital(w.state, sel, set) | w.stuck
	return w.state, nil
}

func (w *fakeWriter) Writes() []digitalWrite {
	w.lock.Lock()
	defer w.lock.Unlock()
	return append([]digitalWrite(nil), w.writes...)
}

type countingCommitter struct {
	lock    sync.Mutex
	commits int
	err     error
}

func (c *countingCommitter) Commit() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.commits++
	return c.err
}

func (c *countingCommitter) Commits() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.commits
}

func controlFrame(c *Command, valves ...int) telem.Frame {
	var f telem.Frame
	for _, v := range valves {
		f.Append(c.Config.Controls[v].Key, telem.Uint8Series([]uint8{1}))
	}
	return f
}
