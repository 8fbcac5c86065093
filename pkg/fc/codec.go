package fc

import (
	"encoding/binary"
	"math"
)

// Sample is one telemetry value reported by the FC.
type Sample struct {
	Value     uint32
	Timestamp uint64
}

// Float interprets the raw value as an IEEE-754 float.
func (s Sample) Float() float32 {
	return math.Float32frombits(s.Value)
}

// EncodeFSM creates a FSM transition command.
func EncodeFSM(transition byte) Packet {
	return Packet{Opcode: OpFSM, Payload: []byte{transition}}
}

// EncodeValve creates a valve command with selection and state masks.
func EncodeValve(selection, state uint32) Packet {
	payload := make([]byte, ValveSize)
	binary.BigEndian.PutUint32(payload[0:], selection)
	binary.BigEndian.PutUint32(payload[4:], state)
	return Packet{Opcode: OpValve, Payload: payload}
}

// EncodeCalibration creates a calibration packet.
// The words are opaque to the host and written as is.
func EncodeCalibration(words [CalibrationWords]uint64) Packet {
	payload := make([]byte, CalibrationSize)
	for n, w := range words {
		binary.BigEndian.PutUint64(payload[n*8:], w)
	}
	return Packet{Opcode: OpCalibration, Payload: payload}
}

// EncodeAck creates an ack for the opcode.
func EncodeAck(op Opcode) Packet {
	return Packet{Opcode: OpAck, Payload: []byte{byte(op)}}
}

// EncodeTelemetry creates a telemetry packet as the FC sends it.
func EncodeTelemetry(samples []Sample) (Packet, error) {
	if len(samples) > MaxSamples {
		return Packet{}, ErrTooManySamples
	}
	payload := make([]byte, 1+len(samples)*SampleSize)
	payload[0] = byte(len(samples))
	for n, s := range samples {
		off := 1 + n*SampleSize
		binary.BigEndian.PutUint32(payload[off:], s.Value)
		binary.BigEndian.PutUint64(payload[off+4:], s.Timestamp)
	}
	return Packet{Opcode: OpTelemetry, Payload: payload}, nil
}

func checkPayload(pkt *Packet, op Opcode, size int) error {
	if pkt.Opcode != op {
		return &OpcodeError{Expected: op, Actual: pkt.Opcode}
	}
	if len(pkt.Payload) < size {
		return ErrTruncated
	}
	return nil
}

// DecodeFSM extracts the transition code.
func DecodeFSM(pkt *Packet) (byte, error) {
	if err := checkPayload(pkt, OpFSM, FSMSize); err != nil {
		return 0, err
	}
	return pkt.Payload[0], nil
}

// DecodeValve extracts selection and state masks.
func DecodeValve(pkt *Packet) (selection, state uint32, err error) {
	if err = checkPayload(pkt, OpValve, ValveSize); err != nil {
		return
	}
	selection = binary.BigEndian.Uint32(pkt.Payload[0:])
	state = binary.BigEndian.Uint32(pkt.Payload[4:])
	return
}

// DecodeCalibration extracts calibration words.
func DecodeCalibration(pkt *Packet) (words [CalibrationWords]uint64, err error) {
	if err = checkPayload(pkt, OpCalibration, CalibrationSize); err != nil {
		return
	}
	for n := range words {
		words[n] = binary.BigEndian.Uint64(pkt.Payload[n*8:])
	}
	return
}

// DecodeAck extracts the acknowledged opcode.
func DecodeAck(pkt *Packet) (Opcode, error) {
	if err := checkPayload(pkt, OpAck, AckSize); err != nil {
		return 0, err
	}
	return Opcode(pkt.Payload[0]), nil
}

// DecodeTelemetry extracts samples.
func DecodeTelemetry(pkt *Packet) ([]Sample, error) {
	if err := checkPayload(pkt, OpTelemetry, 1); err != nil {
		return nil, err
	}
	count := int(pkt.Payload[0])
	if len(pkt.Payload) < 1+count*SampleSize {
		return nil, ErrTruncated
	}
	samples := make([]Sample, count)
	for n := range samples {
		off := 1 + n*SampleSize
		samples[n].Value = binary.BigEndian.Uint32(pkt.Payload[off:])
		samples[n].Timestamp = binary.BigEndian.Uint64(pkt.Payload[off+4:])
	}
	return samples, nil
}
