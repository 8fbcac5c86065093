package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/gse.go/pkg/fc"
	"github.com/robotalks/gse.go/pkg/fc/link"
)

// Shell provides ishell backed interactive shell to operate the FC.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	LinkURL     string
	AckTimeout  time.Duration

	Shell *ishell.Shell
	Conn  *Conn
}

// Conn is a running FC link.
type Conn struct {
	Ctx    context.Context
	Cancel func()
	URL    string
	Link   *link.Link

	acks      chan fc.Opcode
	statsLock sync.Mutex
	samples   int
	last      fc.Sample
}

// Stats is the telemetry received on a connection.
type Stats struct {
	URL       string  `json:"url"`
	Samples   int     `json:"samples"`
	LastValue float32 `json:"last_value"`
	LastTime  uint64  `json:"last_time"`
}

// ErrNotConnected is returned when no FC is connected.
var ErrNotConnected = errors.New("not connected")

// DefaultAckTimeout is how long a command waits for the FC ack.
const DefaultAckTimeout = time.Second

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	linkURL    = os.Getenv("GSE_FC_LINK")

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&linkURL, "link", linkURL, "FC link URL to connect on start.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		LinkURL:     linkURL,
		AckTimeout:  DefaultAckTimeout,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// DoCommand sends a command and prints the ack.
func DoCommand(c *ishell.Context, pkt fc.Packet) error {
	s := ShellFrom(c)
	if err := s.Command(pkt); err != nil {
		c.Err(err)
		return err
	}
	if s.OutputJSON {
		out, _ := json.Marshal(map[string]interface{}{"opcode": pkt.Opcode.String(), "acked": true})
		c.Println(string(out))
		return nil
	}
	c.Println("OK")
	return nil
}

// Command sends a packet and waits for the FC to ack its opcode.
func (s *Shell) Command(pkt fc.Packet) error {
	conn := s.Conn
	if conn == nil {
		return ErrNotConnected
	}
	// drop stale acks.
	for drained := false; !drained; {
		select {
		case <-conn.acks:
		default:
			drained = true
		}
	}
	if err := conn.Link.Send(pkt); err != nil {
		return err
	}
	timeout := time.After(s.AckTimeout)
	for {
		select {
		case op := <-conn.acks:
			if op == pkt.Opcode {
				return nil
			}
		case <-timeout:
			return fmt.Errorf("%s not acked: %w", pkt.Opcode, context.DeadlineExceeded)
		}
	}
}

// Connect dials the FC and starts the link.
func (s *Shell) Connect(url string) error {
	ctx, cancel := context.WithCancel(context.Background())
	rw, err := link.Dial(ctx, url)
	if err != nil {
		cancel()
		return err
	}
	s.Attach(ctx, cancel, url, rw)
	return nil
}

// Attach starts a link over an established packet stream.
func (s *Shell) Attach(ctx context.Context, cancel func(), url string, rw link.PacketReadWriter) {
	conn := &Conn{Ctx: ctx, Cancel: cancel, URL: url, acks: make(chan fc.Opcode, 16)}
	conn.Link = link.New(rw, fc.Decoder{
		Telemetry: fc.HandleTelemetryFunc(conn.handleTelemetry),
		Acks:      fc.HandleAckFunc(conn.handleAck),
	})
	s.Disconnect()
	s.Conn = conn
	go func() {
		if err := conn.Link.Run(ctx); err != nil {
			log.Printf("link %s: %v", url, err)
		}
	}()
	s.setPrompt(fmt.Sprintf("%s > ", url))
}

// Disconnect disconnects current FC.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.setPrompt(unconnectedPrompt)
	}
}

func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

// Stats returns the telemetry statistics of the connection.
func (c *Conn) Stats() Stats {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()
	return Stats{URL: c.URL, Samples: c.samples, LastValue: c.last.Float(), LastTime: c.last.Timestamp}
}

func (c *Conn) handleTelemetry(samples []fc.Sample) {
	if len(samples) == 0 {
		return
	}
	c.statsLock.Lock()
	c.samples += len(samples)
	c.last = samples[len(samples)-1]
	c.statsLock.Unlock()
}

func (c *Conn) handleAck(op fc.Opcode) {
	select {
	case c.acks <- op:
	default:
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.LinkURL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.LinkURL)
		}
		if err := s.Connect(s.LinkURL); err != nil {
			log.Fatalf("connect %q failed: %v", s.LinkURL, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects the FC.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("URL expected, e.g. tcp://host:port or serial:///dev/ttyUSB0?baud=115200"))
				return
			}
			if err := ShellFrom(c).Connect(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current FC.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// StatusCmd prints the telemetry received.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			stats := s.Conn.Stats()
			if s.OutputJSON {
				out, err := json.Marshal(&stats)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Printf("%s: %d samples, last %g at %d\n", stats.URL, stats.Samples, stats.LastValue, stats.LastTime)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
