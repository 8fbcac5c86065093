// Package daq defines the data acquisition hardware boundary.
package daq

import "errors"

// ErrHardware indicates a DAQ read or write failure.
var ErrHardware = errors.New("daq hardware failure")

// Reader acquires analog and digital samples.
type Reader interface {
	Start() error
	Stop() error
	// ReadAnalog fills m with one batch, rows are channels and columns
	// are samples. times receives the timestamp in nanoseconds of each
	// column and must have m.Cols() elements. It blocks until the batch
	// is available.
	ReadAnalog(m *SampleMatrix, times []int64) error
	// ReadDigital returns the digital input bits and the read time.
	ReadDigital() (bits uint32, ts int64, err error)
}

// Writer drives digital outputs.
type Writer interface {
	// WriteDigital updates the outputs selected by sel to the bits in set
	// and returns the resulting state of all outputs.
	WriteDigital(sel, set uint32) (uint32, error)
}

// ApplyDigital computes the output state after a write.
func ApplyDigital(state, sel, set uint32) uint32 {
	return (state &^ sel) | (set & sel)
}
