// Package fc provides the flight computer wire protocol.
package fc

// The protocol is exchanged between the flight computer (FC) and the
// ground host over a byte stream (TCP or serial) or a message transport.
// Every packet starts with a 1-byte opcode, followed by an opcode
// specific payload. Multi-byte fields are big-endian.
//
//   0x01 FC->Host    telemetry: N, then N x (4-byte sample, 8-byte timestamp)
//   0x02 Host->FC    FSM transition: 1-byte transition code
//   0x03 Host->FC    valve command: 4-byte selection mask, 4-byte state mask
//   0x04 Host->FC    calibration: 4 x 8-byte words
//   0x0A either      ack: 1-byte opcode being acknowledged
//
// There's no checksum. Unknown opcodes are ignored by the receiver.
