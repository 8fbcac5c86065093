// Package memory implements an in-process telemetry backend.
package memory

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/telem"
)

// Hub is an in-process telemetry backend.
// Frames are delivered to all open streamers subscribed to any key in the frame.
type Hub struct {
	lock      sync.RWMutex
	channels  map[string]telem.Channel
	nextKey   telem.ChannelKey
	active    *telem.Range
	streamers map[*Streamer]struct{}
	frames    map[string][]telem.Frame
	commits   map[string]int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels:  make(map[string]telem.Channel),
		streamers: make(map[*Streamer]struct{}),
		frames:    make(map[string][]telem.Frame),
		commits:   make(map[string]int),
	}
}

// RetrieveChannel implements telem.Client.
func (h *Hub) RetrieveChannel(ctx context.Context, name string) (telem.Channel, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	ch, ok := h.channels[name]
	if !ok {
		return ch, &telem.NotFoundError{Kind: "channel", Name: name}
	}
	return ch, nil
}

// RetrieveChannels implements telem.Client.
func (h *Hub) RetrieveChannels(ctx context.Context, names ...string) ([]telem.Channel, error) {
	channels := make([]telem.Channel, 0, len(names))
	for _, name := range names {
		ch, err := h.RetrieveChannel(ctx, name)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// ActiveRange implements telem.Client.
func (h *Hub) ActiveRange(ctx context.Context) (*telem.Range, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if h.active == nil {
		return nil, telem.ErrNoActiveRange
	}
	return h.active, nil
}

// CreateChannels implements telem.Admin.
// Index references by name are not supported, Index keys must be resolved
// by the caller.
func (h *Hub) CreateChannels(ctx context.Context, channels ...telem.Channel) ([]telem.Channel, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	res := make([]telem.Channel, len(channels))
	for i, ch := range channels {
		if existing, ok := h.channels[ch.Name]; ok {
			res[i] = existing
			continue
		}
		h.nextKey++
		ch.Key = h.nextKey
		h.channels[ch.Name] = ch
		res[i] = ch
	}
	return res, nil
}

// SetActiveRange implements telem.Admin.
// If the channel telem.ActiveRangeSetChannel exists, a frame is delivered on it.
func (h *Hub) SetActiveRange(ctx context.Context, r *telem.Range) error {
	h.lock.Lock()
	h.active = r
	trigger, ok := h.channels[telem.ActiveRangeSetChannel]
	h.lock.Unlock()
	if ok {
		var f telem.Frame
		f.Append(trigger.Key, telem.TimeStampSeries([]telem.Nanos{telem.Now()}))
		h.publish("", f)
	}
	return nil
}

// OpenWriter implements telem.Client.
func (h *Hub) OpenWriter(ctx context.Context, cfg telem.WriterConfig) (telem.Writer, error) {
	glog.V(2).Infof("memory: open writer %q", cfg.Subject)
	return &Writer{hub: h, cfg: cfg}, nil
}

// OpenStreamer implements telem.Client.
func (h *Hub) OpenStreamer(ctx context.Context, cfg telem.StreamerConfig) (telem.Streamer, error) {
	s := &Streamer{
		hub:    h,
		keys:   append([]telem.ChannelKey(nil), cfg.Keys...),
		frames: make(chan telem.Frame, streamerBufferSize),
		done:   make(chan struct{}),
	}
	h.lock.Lock()
	h.streamers[s] = struct{}{}
	h.lock.Unlock()
	return s, nil
}

// Frames returns the frames written by subject.
func (h *Hub) Frames(subject string) []telem.Frame {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return append([]telem.Frame(nil), h.frames[subject]...)
}

// Commits returns the number of commits by subject.
func (h *Hub) Commits(subject string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.commits[subject]
}

// Streamers returns the number of open streamers.
func (h *Hub) Streamers() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.streamers)
}

func (h *Hub) publish(subject string, f telem.Frame) {
	h.lock.Lock()
	if subject != "" {
		h.frames[subject] = append(h.frames[subject], f)
	}
	streamers := make([]*Streamer, 0, len(h.streamers))
	for s := range h.streamers {
		streamers = append(streamers, s)
	}
	h.lock.Unlock()
	for _, s := range streamers {
		if sub := f.Filter(s.keys); sub.Len() > 0 {
			s.deliver(sub)
		}
	}
}

func (h *Hub) commit(subject string) {
	h.lock.Lock()
	h.commits[subject]++
	h.lock.Unlock()
}

func (h *Hub) remove(s *Streamer) {
	h.lock.Lock()
	delete(h.streamers, s)
	h.lock.Unlock()
}
