package fc

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/gse.go/pkg/cli/sh"
	"github.com/robotalks/gse.go/pkg/fc"
)

var (
	// ValveCmd sets valve states on the FC.
	ValveCmd = ishell.Cmd{
		Name:    "valve",
		Aliases: []string{"v"},
		Help:    "SELECTION STATE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			pkt, err := ParseValve(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, pkt)
		}),
	}

	// FSMCmd requests a FSM transition on the FC.
	FSMCmd = ishell.Cmd{
		Name:    "fsm",
		Aliases: []string{"f"},
		Help:    "TRANSITION",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			pkt, err := ParseFSM(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, pkt)
		}),
	}

	// CalibrationCmd uploads calibration words to the FC.
	CalibrationCmd = ishell.Cmd{
		Name:    "cal",
		Aliases: []string{"calibrate"},
		Help:    "W0 W1 W2 W3",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			pkt, err := ParseCalibration(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, pkt)
		}),
	}
)

// ParseValve parses "SELECTION STATE" into a valve command.
// Numbers accept 0x and 0b prefixes.
func ParseValve(args []string) (fc.Packet, error) {
	if len(args) != 2 {
		return fc.Packet{}, fmt.Errorf("SELECTION STATE expected")
	}
	sel, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fc.Packet{}, fmt.Errorf("invalid selection %q: %w", args[0], err)
	}
	state, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fc.Packet{}, fmt.Errorf("invalid state %q: %w", args[1], err)
	}
	return fc.EncodeValve(uint32(sel), uint32(state)), nil
}

// ParseFSM parses a transition code.
func ParseFSM(args []string) (fc.Packet, error) {
	if len(args) != 1 {
		return fc.Packet{}, fmt.Errorf("TRANSITION expected")
	}
	code, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fc.Packet{}, fmt.Errorf("invalid transition %q: %w", args[0], err)
	}
	return fc.EncodeFSM(byte(code)), nil
}

// ParseCalibration parses the calibration words.
func ParseCalibration(args []string) (fc.Packet, error) {
	var words [fc.CalibrationWords]uint64
	if len(args) != len(words) {
		return fc.Packet{}, fmt.Errorf("%d words expected", len(words))
	}
	for n, arg := range args {
		w, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return fc.Packet{}, fmt.Errorf("invalid word %q: %w", arg, err)
		}
		words[n] = w
	}
	return fc.EncodeCalibration(words), nil
}

func init() {
	sh.AddCmds(
		&ValveCmd,
		&FSMCmd,
		&CalibrationCmd,
	)
}
