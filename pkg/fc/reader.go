package fc

import (
	"bufio"
	"io"
)

// Reader frames packets out of a byte stream.
// The payload length is derived from the opcode, and unknown opcodes
// are returned as header-only packets.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// PayloadSize returns the fixed payload size of an opcode.
// Telemetry is variable and returns -1.
func PayloadSize(op Opcode) int {
	switch op {
	case OpTelemetry:
		return -1
	case OpFSM:
		return FSMSize
	case OpValve:
		return ValveSize
	case OpCalibration:
		return CalibrationSize
	case OpAck:
		return AckSize
	}
	return 0
}

// ReadPacket reads the next packet.
// io.EOF is returned only when the stream ends on a packet boundary.
func (r *Reader) ReadPacket() (*Packet, error) {
	head, err := r.r.ReadByte()
	if err != nil {
		return nil, err
	}
	pkt := &Packet{Opcode: Opcode(head)}
	size := PayloadSize(pkt.Opcode)
	if size < 0 {
		count, err := r.r.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		pkt.Payload = make([]byte, 1+int(count)*SampleSize)
		pkt.Payload[0] = count
		if _, err = io.ReadFull(r.r, pkt.Payload[1:]); err != nil {
			return nil, unexpectedEOF(err)
		}
		return pkt, nil
	}
	if size > 0 {
		pkt.Payload = make([]byte, size)
		if _, err = io.ReadFull(r.r, pkt.Payload); err != nil {
			return nil, unexpectedEOF(err)
		}
	}
	return pkt, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
