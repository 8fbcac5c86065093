// Package link runs the packet exchange with the flight computer.
package link

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/gse.go/pkg/fc"
	fx "github.com/robotalks/gse.go/pkg/framework"
)

// Link receives packets from the FC, dispatches them to the Decoder and
// sends the replies back. Commands are sent with Send.
type Link struct {
	ReadWriter PacketReadWriter
	Decoder    fc.Decoder

	sendLock  sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// New creates a Link.
func New(rw PacketReadWriter, decoder fc.Decoder) *Link {
	return &Link{ReadWriter: rw, Decoder: decoder}
}

// Send writes a packet to the FC.
func (l *Link) Send(pkt fc.Packet) error {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	glog.V(4).Infof("FC SEND %s", &pkt)
	return l.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable. Malformed packets are logged and skipped,
// any transport error ends the link.
func (l *Link) Run(ctx context.Context) error {
	err := fx.RunWithContextCancel(ctx, func() { l.Close() }, l.run)
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Close implements io.Closer. The underlying stream is closed once,
// later calls return the result of the first.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		if closer, ok := l.ReadWriter.(io.Closer); ok {
			l.closeErr = closer.Close()
		}
	})
	return l.closeErr
}

func (l *Link) run() error {
	defer l.Close()
	for {
		pkt, err := l.ReadWriter.ReadPacket()
		if errors.Is(err, fc.ErrTruncated) {
			glog.Warningf("FC packet dropped: %v", err)
			continue
		}
		if err != nil {
			return err
		}
		glog.V(4).Infof("FC RECV %s", pkt)
		reply, err := l.Decoder.Decode(pkt)
		if err != nil {
			glog.Warningf("FC packet %s dropped: %v", pkt.Opcode, err)
			continue
		}
		if reply != nil {
			if err = l.Send(*reply); err != nil {
				return err
			}
		}
	}
}
