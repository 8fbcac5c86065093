package gse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/calibration"
	fx "github.com/robotalks/gse.go/pkg/framework"
	"github.com/robotalks/gse.go/pkg/telem"
)

// Range parameter suffixes of a channel.
const (
	TypeSuffix     = "_type"
	PTOffsetSuffix = "_pt_offset"
	PTSlopeSuffix  = "_pt_slope"
)

// Listener rebuilds the calibration directory whenever the active
// range changes.
type Listener struct {
	Client    telem.Client
	Channels  []telem.Channel
	Trigger   telem.Channel
	Directory *calibration.Directory

	lock     sync.Mutex
	streamer telem.Streamer
	stopped  bool
}

// Run implements Runnable.
func (l *Listener) Run(ctx context.Context) error {
	return fx.RunStopper(ctx, l, func() error { return l.run(ctx) })
}

// Stop ends the update stream.
func (l *Listener) Stop() {
	l.lock.Lock()
	l.stopped = true
	s := l.streamer
	l.lock.Unlock()
	if s != nil {
		s.CloseSend()
	}
}

func (l *Listener) run(ctx context.Context) error {
	if err := l.Rebuild(ctx); err != nil {
		glog.Warningf("calibration rebuild failed: %v", err)
	}
	s, err := l.Client.OpenStreamer(ctx, telem.StreamerConfig{
		Keys:  []telem.ChannelKey{l.Trigger.Key},
		Start: telem.Now(),
	})
	if err != nil {
		return err
	}
	l.lock.Lock()
	stopped := l.stopped
	l.streamer = s
	l.lock.Unlock()
	if stopped {
		s.CloseSend()
		return nil
	}

	for {
		if _, err := s.Read(); err != nil {
			if errors.Is(err, telem.ErrStreamClosed) {
				return nil
			}
			return err
		}
		glog.Info("active range changed, rebuilding calibrations")
		if err := l.Rebuild(ctx); err != nil {
			glog.Warningf("calibration rebuild failed: %v", err)
		}
	}
}

// Rebuild binds every channel to a calibrator according to the active
// range and installs all of them at once. Without an active range the
// directory is cleared.
func (l *Listener) Rebuild(ctx context.Context) error {
	r, err := l.Client.ActiveRange(ctx)
	if errors.Is(err, telem.ErrNoActiveRange) {
		glog.Warning("no active range, calibrations cleared")
		l.Directory.Clear()
		return nil
	}
	if err != nil {
		return err
	}

	previous := make(map[telem.ChannelKey]*calibration.Calibrator)
	for _, e := range l.Directory.Snapshot() {
		previous[e.Channel.Key] = e.Calibrator
	}
	entries := make([]calibration.Entry, len(l.Channels))
	counts := make(map[calibration.Kind]int)
	for i, ch := range l.Channels {
		cal, err := bind(r, ch.Name)
		if err != nil {
			glog.Warningf("channel %s: %v", ch.Name, err)
			if cal = previous[ch.Key]; cal == nil {
				cal = calibration.NewNOOP()
			}
		}
		entries[i] = calibration.Entry{Channel: ch, Calibrator: cal}
		counts[cal.Kind]++
	}
	l.Directory.Install(entries)
	glog.Infof("calibrations installed from range %q: PT=%d TC=%d NOOP=%d",
		r.Name, counts[calibration.KindPT], counts[calibration.KindTC], counts[calibration.KindNOOP])
	return nil
}

func bind(r *telem.Range, name string) (*calibration.Calibrator, error) {
	tag, _ := r.Get(name + TypeSuffix)
	switch calibration.ParseKind(tag) {
	case calibration.KindPT:
		offset, err := floatParam(r, name+PTOffsetSuffix)
		if err != nil {
			return nil, err
		}
		slope, err := floatParam(r, name+PTSlopeSuffix)
		if err != nil {
			return nil, err
		}
		return calibration.NewPT(offset, slope), nil
	case calibration.KindTC:
		return calibration.NewTC(), nil
	default:
		if tag != "" {
			glog.V(2).Infof("channel %s: type %q not calibrated", name, tag)
		}
		return calibration.NewNOOP(), nil
	}
}

func floatParam(r *telem.Range, key string) (float32, error) {
	val, err := r.Get(key)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", calibration.ErrMissingParameter, key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", calibration.ErrMissingParameter, key, val)
	}
	return float32(f), nil
}
