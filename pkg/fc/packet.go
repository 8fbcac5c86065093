package fc

import (
	"fmt"
	"io"
)

// Opcode is the 1-byte packet header.
type Opcode byte

// Opcodes.
const (
	OpTelemetry   Opcode = 0x01
	OpFSM         Opcode = 0x02
	OpValve       Opcode = 0x03
	OpCalibration Opcode = 0x04
	OpAck         Opcode = 0x0A
)

// Fixed payload sizes.
const (
	SampleSize       = 12
	FSMSize          = 1
	ValveSize        = 8
	AckSize          = 1
	CalibrationWords = 4
	CalibrationSize  = CalibrationWords * 8
	MaxSamples       = 0xff
)

var opcodeNames = map[Opcode]string{
	OpTelemetry:   "telemetry",
	OpFSM:         "fsm",
	OpValve:       "valve",
	OpCalibration: "calibration",
	OpAck:         "ack",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(op))
}

// Known indicates the opcode is defined by the protocol.
func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Packet contains the information of a parsed packet.
type Packet struct {
	Opcode  Opcode
	Payload []byte
}

// Len returns the encoded length including the header.
func (p *Packet) Len() int {
	return len(p.Payload) + 1
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, p.Len())
	b[0] = byte(p.Opcode)
	copy(b[1:], p.Payload)
	return b
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// String implements fmt.Stringer, dumps bytes in hex.
func (p *Packet) String() string {
	return fmt.Sprintf("% x", p.Bytes())
}

// ParsePacket splits raw bytes into header and payload.
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) == 0 {
		return nil, ErrTruncated
	}
	return &Packet{Opcode: Opcode(b[0]), Payload: b[1:]}, nil
}
