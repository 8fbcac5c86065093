package link

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	"github.com/robotalks/gse.go/pkg/fc/link/stream"
	ws "github.com/robotalks/gse.go/pkg/fc/link/websocket"
)

// DefaultBaudRate is used for serial links without a baud parameter.
const DefaultBaudRate = 115200

// Dial connects to the FC. Supported URLs:
//
//	tcp://host:port
//	serial:///dev/ttyUSB0?baud=115200
//	ws://host:port/path (also wss)
func Dial(ctx context.Context, rawURL string) (PacketReadWriter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	glog.Infof("dialing FC %s", u.Redacted())
	switch u.Scheme {
	case "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	case "serial":
		mode, err := SerialModeFromURL(u)
		if err != nil {
			return nil, err
		}
		port, err := serial.Open(u.Path, mode)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", u.Path, err)
		}
		return stream.New(port), nil
	case "ws", "wss":
		origin := u.Query().Get("origin")
		if origin == "" {
			origin = "http://localhost/"
		}
		conn, err := websocket.Dial(rawURL, "", origin)
		if err != nil {
			return nil, err
		}
		return ws.New(conn), nil
	}
	return nil, fmt.Errorf("unsupported FC link scheme %q", u.Scheme)
}

// SerialModeFromURL builds the 8N1 serial mode with the baud rate from
// the query parameter baud.
func SerialModeFromURL(u *url.URL) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if baud := u.Query().Get("baud"); baud != "" {
		rate, err := strconv.Atoi(baud)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid baud rate %q", baud)
		}
		mode.BaudRate = rate
	}
	return mode, nil
}
