package mqtt

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/telem"
)

const streamerBufferSize = 64

type writerMeta struct {
	Session string `json:"session"`
	telem.WriterConfig
}

// Writer implements telem.Writer.
type Writer struct {
	client  *Client
	subject string
	session string
	cfg     telem.WriterConfig

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
	return w.client.publish(context.Background(), topicFrames+w.subject, telem.MarshalFrame(f), 0, false)
}

// Commit implements telem.Writer.
// The marker is published with QoS 1 after all frames on the same
// connection, so its acknowledgement covers the frames written before.
func (w *Writer) Commit() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return telem.ErrWriterClosed
	}
	marker := w.session + " " + strconv.FormatInt(int64(telem.Now()), 10)
	return w.client.publish(context.Background(), topicCommits+w.subject, []byte(marker), 1, false)
}

// Close implements telem.Writer.
func (w *Writer) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.client.publish(context.Background(), topicWriters+w.subject, nil, 1, true)
}

func (w *Writer) announce(ctx context.Context) error {
	payload, err := json.Marshal(&writerMeta{Session: w.session, WriterConfig: w.cfg})
	if err != nil {
		panic(err)
	}
	glog.V(2).Infof("writer %q session %s", w.subject, w.session)
	return w.client.publish(ctx, topicWriters+w.subject, payload, 1, true)
}

// Streamer implements telem.Streamer.
type Streamer struct {
	keys   []telem.ChannelKey
	start  telem.Nanos
	sub    *Subscription
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
func (s *Streamer) CloseSend() (err error) {
	s.once.Do(func() {
		close(s.done)
		err = s.sub.Close()
	})
	return
}

func (s *Streamer) handleMsg(topic string, payload []byte) {
	f, err := telem.UnmarshalFrame(payload)
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	if !s.after(f) {
		return
	}
	if f = f.Filter(s.keys); f.Len() == 0 {
		return
	}
	select {
	case s.frames <- f:
	case <-s.done:
	}
}

// after checks the frame isn't older than the start of the stream,
// using the first timestamp column if any.
func (s *Streamer) after(f telem.Frame) bool {
	if s.start == 0 {
		return true
	}
	for _, series := range f.Series {
		if series.DataType == telem.TimeStamp && series.Len() > 0 {
			ts := series.TimeStamps()
			return ts[len(ts)-1] >= s.start
		}
	}
	return true
}
