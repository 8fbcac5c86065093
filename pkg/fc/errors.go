package fc

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates the payload is shorter than the opcode requires.
	ErrTruncated = errors.New("truncated packet")
	// ErrTooManySamples indicates a telemetry packet can't hold the samples.
	ErrTooManySamples = errors.New("too many samples")
)

// OpcodeError indicates a payload is decoded with the wrong opcode.
type OpcodeError struct {
	Expected Opcode
	Actual   Opcode
}

// Error implements error.
func (e *OpcodeError) Error() string {
	return fmt.Sprintf("expect opcode %s, got %s", e.Expected, e.Actual)
}
