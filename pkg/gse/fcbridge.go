package gse

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/fc"
	"github.com/robotalks/gse.go/pkg/telem"
)

// FCBridge publishes FC telemetry and tracks FC acks.
type FCBridge struct {
	Writer telem.Writer
	Index  telem.Channel
	Sample telem.Channel

	lock    sync.Mutex
	lastAck fc.Opcode
	acks    int
}

// Decoder returns a decoder dispatching to the bridge.
func (b *FCBridge) Decoder() fc.Decoder {
	return fc.Decoder{Telemetry: b, Acks: b}
}

// HandleTelemetry implements fc.TelemetrySink.
// FC timestamps are written as nanoseconds.
func (b *FCBridge) HandleTelemetry(samples []fc.Sample) {
	if len(samples) == 0 {
		return
	}
	times := make([]telem.Nanos, len(samples))
	values := make([]float32, len(samples))
	for n, s := range samples {
		times[n] = telem.Nanos(s.Timestamp)
		values[n] = s.Float()
	}
	var f telem.Frame
	f.Append(b.Index.Key, telem.TimeStampSeries(times))
	f.Append(b.Sample.Key, telem.Float32Series(values))
	if err := b.Writer.Write(f); err != nil {
		glog.Errorf("write FC telemetry: %v", err)
	}
}

// HandleAck implements fc.AckHandler.
func (b *FCBridge) HandleAck(op fc.Opcode) {
	b.lock.Lock()
	b.lastAck = op
	b.acks++
	b.lock.Unlock()
	glog.V(2).Infof("FC acked %s", op)
}

// LastAck returns the last acknowledged opcode, false if none yet.
func (b *FCBridge) LastAck() (fc.Opcode, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastAck, b.acks > 0
}
