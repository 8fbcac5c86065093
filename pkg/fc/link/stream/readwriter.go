// Package stream frames FC packets over a byte stream, e.g. TCP or serial.
package stream

import (
	"io"

	"github.com/robotalks/gse.go/pkg/fc"
)

// ReadWriter implements link.PacketReadWriter.
// Packets are delimited by the opcode table, no extra framing is added.
type ReadWriter struct {
	io.ReadWriter
	reader *fc.Reader
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, reader: fc.NewReader(s)}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (*fc.Packet, error) {
	return p.reader.ReadPacket()
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt fc.Packet) error {
	_, err := pkt.WriteTo(p.ReadWriter)
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
