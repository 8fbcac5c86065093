package gse

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Watchdog defaults.
const (
	DefaultWatchdogInterval  = time.Second
	DefaultWatchdogThreshold = 30 * time.Second
)

// Committer commits a telemetry writer.
type Committer interface {
	Commit() error
}

// Watchdog commits the ack writer periodically once acks are pending.
type Watchdog struct {
	State     *AckState
	Committer Committer
	Interval  time.Duration
	Threshold time.Duration
	Now       func() time.Time
}

// Run implements Runnable.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check commits if acks are pending longer than the threshold.
// It reports whether a commit was attempted.
func (w *Watchdog) Check() bool {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	threshold := w.Threshold
	if threshold <= 0 {
		threshold = DefaultWatchdogThreshold
	}
	if !w.State.DueForCommit(now(), threshold) {
		return false
	}
	if err := w.Committer.Commit(); err != nil {
		glog.Errorf("commit acks: %v", err)
	} else {
		glog.V(2).Info("acks committed")
	}
	return true
}
