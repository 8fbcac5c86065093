package telem

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamClosed is returned by Streamer.Read after CloseSend.
	// It marks a graceful end of stream, not a failure.
	ErrStreamClosed = errors.New("stream closed")
	// ErrNoActiveRange indicates no range is currently active.
	ErrNoActiveRange = errors.New("no active range")
	// ErrNotConnected indicates the backend is unreachable.
	ErrNotConnected = errors.New("not connected")
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer closed")
	// ErrCorruptFrame indicates an undecodable frame envelope.
	ErrCorruptFrame = errors.New("corrupt frame")
)

// NotFoundError indicates a named resource doesn't exist.
type NotFoundError struct {
	Kind string
	Name string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// IsNotFound determines if err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
