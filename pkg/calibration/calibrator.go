// Package calibration converts raw analog samples into physical units.
package calibration

import (
	"fmt"

	"github.com/golang/glog"
)

// Kind is the calibration type of a channel.
type Kind int

// Calibration kinds.
const (
	KindNOOP Kind = iota
	KindPT
	KindTC
)

// ParseKind parses the type tag from the active range.
// Unknown or empty tags are NOOP.
func ParseKind(tag string) Kind {
	switch tag {
	case "PT":
		return KindPT
	case "TC":
		return KindTC
	}
	return KindNOOP
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindPT:
		return "PT"
	case KindTC:
		return "TC"
	case KindNOOP:
		return "NOOP"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Calibrator transforms a range of samples in place.
// Only PT carries state, so a Calibrator must not be shared by
// concurrent transforms.
type Calibrator struct {
	Kind Kind
	pt   ptState
}

// ptState calibrates a pressure transducer. The first batch is
// averaged as the ambient pressure and subtracted from all later batches.
type ptState struct {
	// offset in volts subtracted from the raw data.
	offset float32
	// scale in psi per volt.
	scale      float32
	ambient    float32
	ambientSet bool
}

// NewPT creates a pressure transducer calibrator.
func NewPT(offset, scale float32) *Calibrator {
	return &Calibrator{Kind: KindPT, pt: ptState{offset: offset, scale: scale}}
}

// NewTC creates a thermocouple calibrator.
func NewTC() *Calibrator {
	return &Calibrator{Kind: KindTC}
}

// NewNOOP creates an identity calibrator.
func NewNOOP() *Calibrator {
	return &Calibrator{Kind: KindNOOP}
}

// Ambient returns the captured ambient value of a PT calibrator.
func (c *Calibrator) Ambient() (float32, bool) {
	return c.pt.ambient, c.pt.ambientSet
}

// Transform calibrates data[start:end] in place.
func (c *Calibrator) Transform(data []float32, start, end int) {
	if start >= end {
		return
	}
	switch c.Kind {
	case KindPT:
		c.pt.transform(data[start:end])
	case KindTC:
		for i := start; i < end; i++ {
			data[i] = Temperature(data[i])
		}
	case KindNOOP:
	default:
		panic(fmt.Sprintf("unknown calibration kind %v", c.Kind))
	}
}

// String implements fmt.Stringer.
func (c *Calibrator) String() string {
	if c.Kind == KindPT {
		return fmt.Sprintf("PT(offset=%g, scale=%g)", c.pt.offset, c.pt.scale)
	}
	return c.Kind.String()
}

func (s *ptState) transform(data []float32) {
	if s.ambientSet {
		for i, v := range data {
			data[i] = (v-s.offset)*s.scale - s.ambient
		}
		return
	}
	var sum float32
	for i, v := range data {
		data[i] = (v - s.offset) * s.scale
		sum += data[i]
	}
	s.ambient = sum / float32(len(data))
	s.ambientSet = true
	glog.Infof("ambient pressure captured: %g", s.ambient)
}
