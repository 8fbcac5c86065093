package memory

import (
	"sync"

	"github.com/robotalks/gse.go/pkg/telem"
)

const streamerBufferSize = 64

// Writer implements telem.Writer.
type Writer struct {
	hub    *Hub
	cfg    telem.WriterConfig
	lock   sync.Mutex
	closed bool
}

// Write implements telem.Writer.
func (w *Writer) Write(f telem.Frame) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return telem.ErrWriterClosed
	}
	w.hub.publish(w.cfg.Subject, f)
	return nil
}

// Commit implements telem.Writer.
func (w *Writer) Commit() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return telem.ErrWriterClosed
	}
	w.hub.commit(w.cfg.Subject)
	return nil
}

// Close implements telem.Writer.
func (w *Writer) Close() error {
	w.lock.Lock()
	w.closed = true
	w.lock.Unlock()
	return nil
}

// Streamer implements telem.Streamer.
type Streamer struct {
	hub    *Hub
	keys   []telem.ChannelKey
	frames chan telem.Frame
	done   chan struct{}
	once   sync.Once
}

// Read implements telem.Streamer.
func (s *Streamer) Read() (telem.Frame, error) {
	select {
	case <-s.done:
		return telem.Frame{}, telem.ErrStreamClosed
	default:
	}
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		return telem.Frame{}, telem.ErrStreamClosed
	}
}

// CloseSend implements telem.Streamer.
func (s *Streamer) CloseSend() error {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
	return nil
}

func (s *Streamer) deliver(f telem.Frame) {
	select {
	case s.frames <- f:
	case <-s.done:
	}
}
