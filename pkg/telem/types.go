package telem

import (
	"context"
	"time"
)

// ActiveRangeSetChannel is the channel written whenever the active range changes.
const ActiveRangeSetChannel = "sy_active_range_set"

// ChannelKey is the backend assigned identity of a channel.
type ChannelKey uint32

// DataType names the sample type of a channel.
type DataType string

// Supported data types.
const (
	Float32   DataType = "float32"
	Float64   DataType = "float64"
	Int64     DataType = "int64"
	Uint8     DataType = "uint8"
	Uint32    DataType = "uint32"
	TimeStamp DataType = "timestamp"
)

// Density returns the size in bytes of a single sample, 0 if unknown.
func (t DataType) Density() int {
	switch t {
	case Uint8:
		return 1
	case Float32, Uint32:
		return 4
	case Float64, Int64, TimeStamp:
		return 8
	}
	return 0
}

// Channel describes a telemetry channel.
type Channel struct {
	Key      ChannelKey `json:"key"`
	Name     string     `json:"name"`
	DataType DataType   `json:"data_type"`
	IsIndex  bool       `json:"is_index,omitempty"`
	// Index is the key of the index channel of a data channel.
	Index ChannelKey `json:"index,omitempty"`
}

// Keys extracts the keys of channels.
func Keys(channels []Channel) []ChannelKey {
	keys := make([]ChannelKey, len(channels))
	for i, ch := range channels {
		keys[i] = ch.Key
	}
	return keys
}

// Nanos is a timestamp in nanoseconds since the Unix epoch.
type Nanos int64

// Now returns the current timestamp.
func Now() Nanos {
	return FromTime(time.Now())
}

// FromTime converts time.Time.
func FromTime(t time.Time) Nanos {
	return Nanos(t.UnixNano())
}

// Time converts to time.Time.
func (n Nanos) Time() time.Time {
	return time.Unix(0, int64(n))
}

// Range is an active configuration carrying key-value parameters.
type Range struct {
	Key  string            `json:"key"`
	Name string            `json:"name"`
	KV   map[string]string `json:"kv,omitempty"`
}

// Get retrieves a key-value parameter.
func (r *Range) Get(key string) (string, error) {
	if val, ok := r.KV[key]; ok {
		return val, nil
	}
	return "", &NotFoundError{Kind: "range parameter", Name: key}
}

// Authority is the control authority of a writer over its channels.
type Authority uint8

// AbsoluteAuthority is the highest authority.
const AbsoluteAuthority Authority = 255

// WriterConfig configures a Writer.
type WriterConfig struct {
	Keys        []ChannelKey `json:"keys"`
	Start       Nanos        `json:"start"`
	Authorities []Authority  `json:"authorities,omitempty"`
	Subject     string       `json:"subject"`
}

// StreamerConfig configures a Streamer.
type StreamerConfig struct {
	Keys  []ChannelKey
	Start Nanos
}

// Writer writes frames.
type Writer interface {
	// Write publishes a frame.
	Write(Frame) error
	// Commit blocks until all written frames are durable.
	Commit() error
	// Close releases the writer.
	Close() error
}

// Streamer reads frames of the subscribed channels.
type Streamer interface {
	// Read blocks until a frame is available.
	// It returns ErrStreamClosed after CloseSend.
	Read() (Frame, error)
	// CloseSend ends the stream and releases the blocked Read.
	CloseSend() error
}

// Client is the telemetry backend.
type Client interface {
	RetrieveChannel(ctx context.Context, name string) (Channel, error)
	RetrieveChannels(ctx context.Context, names ...string) ([]Channel, error)
	// ActiveRange returns ErrNoActiveRange if nothing is active.
	ActiveRange(ctx context.Context) (*Range, error)
	OpenWriter(ctx context.Context, cfg WriterConfig) (Writer, error)
	OpenStreamer(ctx context.Context, cfg StreamerConfig) (Streamer, error)
}

// Admin provisions the backend.
type Admin interface {
	// CreateChannels creates channels that don't exist yet and returns
	// all of them with keys assigned.
	CreateChannels(ctx context.Context, channels ...Channel) ([]Channel, error)
	// SetActiveRange activates r, or deactivates the current range if r is nil.
	SetActiveRange(ctx context.Context, r *Range) error
}
