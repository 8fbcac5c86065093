package fc

// TelemetrySink receives decoded telemetry samples.
type TelemetrySink interface {
	HandleTelemetry([]Sample)
}

// HandleTelemetryFunc is func type of TelemetrySink.
type HandleTelemetryFunc func([]Sample)

// HandleTelemetry implements TelemetrySink.
func (f HandleTelemetryFunc) HandleTelemetry(samples []Sample) {
	f(samples)
}

// AckHandler receives acks from the FC.
type AckHandler interface {
	HandleAck(Opcode)
}

// HandleAckFunc is func type of AckHandler.
type HandleAckFunc func(Opcode)

// HandleAck implements AckHandler.
func (f HandleAckFunc) HandleAck(op Opcode) {
	f(op)
}

// Decoder dispatches packets received from the FC.
type Decoder struct {
	Telemetry TelemetrySink
	Acks      AckHandler
}

// Decode processes one packet and returns the reply to send back, if any.
// Telemetry is acked with {0x0A, 0x01}. Unknown opcodes are ignored.
func (d *Decoder) Decode(pkt *Packet) (*Packet, error) {
	switch pkt.Opcode {
	case OpTelemetry:
		samples, err := DecodeTelemetry(pkt)
		if err != nil {
			return nil, err
		}
		if h := d.Telemetry; h != nil {
			h.HandleTelemetry(samples)
		}
		reply := EncodeAck(OpTelemetry)
		return &reply, nil
	case OpAck:
		op, err := DecodeAck(pkt)
		if err != nil {
			return nil, err
		}
		if h := d.Acks; h != nil {
			h.HandleAck(op)
		}
	}
	return nil, nil
}
