package link

import "github.com/robotalks/gse.go/pkg/fc"

// PacketReader reads FC packets.
type PacketReader interface {
	ReadPacket() (*fc.Packet, error)
}

// PacketWriter writes FC packets.
type PacketWriter interface {
	WritePacket(fc.Packet) error
}

// PacketReadWriter reads/writes FC packets.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}
