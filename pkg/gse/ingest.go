package gse

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/calibration"
	"github.com/robotalks/gse.go/pkg/daq"
	fx "github.com/robotalks/gse.go/pkg/framework"
	"github.com/robotalks/gse.go/pkg/telem"
)

// EmptyPolicy decides what Ingest publishes while the directory is empty.
type EmptyPolicy int

// Empty directory policies.
const (
	// PolicyRaw publishes uncalibrated samples of all channels.
	PolicyRaw EmptyPolicy = iota
	// PolicySuppress skips publishing.
	PolicySuppress
)

// ParseEmptyPolicy parses "raw" or "suppress".
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch s {
	case "raw", "":
		return PolicyRaw, nil
	case "suppress":
		return PolicySuppress, nil
	}
	return PolicyRaw, fmt.Errorf("invalid empty directory policy %q", s)
}

// String implements fmt.Stringer.
func (p EmptyPolicy) String() string {
	if p == PolicySuppress {
		return "suppress"
	}
	return "raw"
}

// IngestConfig configures Ingest.
type IngestConfig struct {
	// Index is the timestamp channel, always the first column.
	Index telem.Channel
	// Channels are the analog channels in DAQ row order.
	Channels    []telem.Channel
	BatchSize   int
	CommitEvery int
	EmptyPolicy EmptyPolicy
}

// Ingest reads analog batches, calibrates and publishes them.
type Ingest struct {
	Config    IngestConfig
	Reader    daq.Reader
	Writer    telem.Writer
	Directory *calibration.Directory
	Running   *RunFlag

	matrix  *daq.SampleMatrix
	times   []int64
	batches int
}

// Run implements Runnable.
func (i *Ingest) Run(ctx context.Context) error {
	return fx.RunStopper(ctx, i, i.run)
}

// Stop clears the running flag and stops the DAQ reader.
func (i *Ingest) Stop() {
	i.Running.Set(false)
	if err := i.Reader.Stop(); err != nil {
		glog.Warningf("stop analog input: %v", err)
	}
}

func (i *Ingest) run() error {
	if err := i.Reader.Start(); err != nil {
		return fmt.Errorf("start analog input: %w", err)
	}
	for i.Running.Running() {
		err := i.Step()
		if err != nil && !i.Running.Running() {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Step processes one batch: read, calibrate, publish and commit when due.
func (i *Ingest) Step() error {
	if i.matrix == nil {
		i.matrix = daq.NewSampleMatrix(len(i.Config.Channels), i.Config.BatchSize)
		i.times = make([]int64, i.Config.BatchSize)
	}
	entries := i.Directory.Snapshot()
	i.matrix.Clear()
	if err := i.Reader.ReadAnalog(i.matrix, i.times); err != nil {
		return fmt.Errorf("read analog: %w", err)
	}
	frame, ok := i.buildFrame(entries)
	if ok {
		if err := i.Writer.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}
	i.batches++
	if i.batches >= i.Config.CommitEvery {
		glog.V(2).Infof("committing %d batches", i.batches)
		if err := i.Writer.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		i.batches = 0
	}
	return nil
}

// buildFrame calibrates the batch in place with the entries taken at
// batch start and returns the frame to publish, false if nothing should
// be published.
func (i *Ingest) buildFrame(entries []calibration.Entry) (frame telem.Frame, ok bool) {
	timestamps := make([]telem.Nanos, len(i.times))
	for n, ts := range i.times {
		timestamps[n] = telem.Nanos(ts)
	}
	frame.Append(i.Config.Index.Key, telem.TimeStampSeries(timestamps))

	if len(entries) == 0 {
		if i.Config.EmptyPolicy == PolicySuppress {
			return frame, false
		}
		for row, ch := range i.Config.Channels {
			frame.Append(ch.Key, telem.Float32Series(i.matrix.Row(row)))
		}
		return frame, true
	}

	data, cols := i.matrix.Data(), i.matrix.Cols()
	for row, e := range entries {
		if row >= i.matrix.Rows() {
			break
		}
		start := row * cols
		e.Calibrator.Transform(data, start, start+cols)
		frame.Append(e.Channel.Key, telem.Float32Series(i.matrix.Row(row)))
	}
	return frame, true
}
