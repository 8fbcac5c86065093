package link

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/gse.go/pkg/fc"
	"github.com/robotalks/gse.go/pkg/fc/link/stream"
)

func TestLink(t *testing.T) {
	hostConn, fcConn := net.Pipe()
	defer fcConn.Close()

	samplesCh := make(chan []fc.Sample, 1)
	acksCh := make(chan fc.Opcode, 1)
	l := New(stream.New(hostConn), fc.Decoder{
		Telemetry: fc.HandleTelemetryFunc(func(samples []fc.Sample) { samplesCh <- samples }),
		Acks:      fc.HandleAckFunc(func(op fc.Opcode) { acksCh <- op }),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	telemetry, err := fc.EncodeTelemetry([]fc.Sample{{Value: 0xAABBCCDD, Timestamp: 42}})
	require.NoError(t, err)
	_, err = fcConn.Write(telemetry.Bytes())
	require.NoError(t, err)
	reply := make([]byte, 2)
	_, err = io.ReadFull(fcConn, reply)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0a, 0x01}, reply)
	require.Equal(t, []fc.Sample{{Value: 0xAABBCCDD, Timestamp: 42}}, <-samplesCh)

	// unknown opcodes are skipped.
	_, err = fcConn.Write([]byte{0x7f, 0x0a, 0x03})
	require.NoError(t, err)
	require.Equal(t, fc.OpValve, <-acksCh)

	go func() {
		require.NoError(t, l.Send(fc.EncodeValve(1, 1)))
	}()
	valve := make([]byte, 9)
	_, err = io.ReadFull(fcConn, valve)
	require.NoError(t, err)
	require.Equal(t, []byte{0x03, 0, 0, 0, 1, 0, 0, 0, 1}, valve)

	cancel()
	select {
	case err = <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("link not stopped")
	}
}

func TestLinkRemoteClose(t *testing.T) {
	hostConn, fcConn := net.Pipe()
	l := New(stream.New(hostConn), fc.Decoder{})
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()
	require.NoError(t, fcConn.Close())
	require.NoError(t, <-errCh)
}

func TestSerialModeFromURL(t *testing.T) {
	u, err := url.Parse("serial:///dev/ttyUSB0?baud=57600")
	require.NoError(t, err)
	mode, err := SerialModeFromURL(u)
	require.NoError(t, err)
	require.Equal(t, 57600, mode.BaudRate)
	require.Equal(t, 8, mode.DataBits)
	require.Equal(t, "/dev/ttyUSB0", u.Path)

	u, _ = url.Parse("serial:///dev/ttyUSB0")
	mode, err = SerialModeFromURL(u)
	require.NoError(t, err)
	require.Equal(t, DefaultBaudRate, mode.BaudRate)

	u, _ = url.Parse("serial:///dev/ttyUSB0?baud=fast")
	_, err = SerialModeFromURL(u)
	require.Error(t, err)
}

func TestDialUnsupported(t *testing.T) {
	_, err := Dial(context.Background(), "udp://localhost:1")
	require.Error(t, err)
}

type countingCloser struct {
	PacketReadWriter
	conn   net.Conn
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	if c.closes > 1 {
		return errors.New("already closed")
	}
	return c.conn.Close()
}

func TestLinkCloseOnce(t *testing.T) {
	hostConn, fcConn := net.Pipe()
	defer fcConn.Close()
	rw := &countingCloser{PacketReadWriter: stream.New(hostConn), conn: hostConn}
	l := New(rw, fc.Decoder{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("link not stopped")
	}
	// closed by cancel and by the read loop, then by the owner.
	require.NoError(t, l.Close())
	require.Equal(t, 1, rw.closes)
}
