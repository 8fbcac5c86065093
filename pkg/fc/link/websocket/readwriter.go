// Package websocket carries one FC packet per binary websocket message.
package websocket

import (
	"golang.org/x/net/websocket"

	"github.com/robotalks/gse.go/pkg/fc"
)

// ReadWriter implements link.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// ReadPacket implements PacketReader.
// A malformed message yields fc.ErrTruncated without closing the connection.
func (p *ReadWriter) ReadPacket() (*fc.Packet, error) {
	var msg []byte
	if err := websocket.Message.Receive((*websocket.Conn)(p), &msg); err != nil {
		return nil, err
	}
	return fc.ParsePacket(msg)
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt fc.Packet) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt.Bytes())
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}
