package telem

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Series is a column of samples packed little-endian.
type Series struct {
	DataType DataType
	Data     []byte
}

// Float32Series packs float32 samples.
func Float32Series(v []float32) Series {
	s := Series{DataType: Float32, Data: make([]byte, len(v)*4)}
	for i, f := range v {
		binary.LittleEndian.PutUint32(s.Data[i*4:], math.Float32bits(f))
	}
	return s
}

// TimeStampSeries packs timestamps.
func TimeStampSeries(v []Nanos) Series {
	s := Series{DataType: TimeStamp, Data: make([]byte, len(v)*8)}
	for i, ts := range v {
		binary.LittleEndian.PutUint64(s.Data[i*8:], uint64(ts))
	}
	return s
}

// Uint8Series packs uint8 samples.
func Uint8Series(v []uint8) Series {
	return Series{DataType: Uint8, Data: append([]byte(nil), v...)}
}

// Len returns the number of samples.
func (s Series) Len() int {
	if d := s.DataType.Density(); d > 0 {
		return len(s.Data) / d
	}
	return 0
}

// Float64At converts the i-th sample to float64 regardless of the data type.
func (s Series) Float64At(i int) float64 {
	d := s.DataType.Density()
	b := s.Data[i*d : (i+1)*d]
	switch s.DataType {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Int64, TimeStamp:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Uint8:
		return float64(b[0])
	}
	panic(fmt.Sprintf("unsupported data type %q", s.DataType))
}

// Float32s unpacks a float32 series.
func (s Series) Float32s() []float32 {
	v := make([]float32, len(s.Data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(s.Data[i*4:]))
	}
	return v
}

// TimeStamps unpacks a timestamp series.
func (s Series) TimeStamps() []Nanos {
	v := make([]Nanos, len(s.Data)/8)
	for i := range v {
		v[i] = Nanos(binary.LittleEndian.Uint64(s.Data[i*8:]))
	}
	return v
}

// Frame is a set of series keyed by channel.
type Frame struct {
	Keys   []ChannelKey
	Series []Series
}

// Append adds a column.
func (f *Frame) Append(key ChannelKey, s Series) {
	f.Keys = append(f.Keys, key)
	f.Series = append(f.Series, s)
}

// Len returns the number of columns.
func (f Frame) Len() int {
	return len(f.Keys)
}

// Get finds the column of a channel.
func (f Frame) Get(key ChannelKey) (Series, bool) {
	for i, k := range f.Keys {
		if k == key {
			return f.Series[i], true
		}
	}
	return Series{}, false
}

// Filter returns the columns of keys only, keeping the order in f.
func (f Frame) Filter(keys []ChannelKey) Frame {
	var res Frame
	for i, k := range f.Keys {
		for _, key := range keys {
			if k == key {
				res.Append(k, f.Series[i])
				break
			}
		}
	}
	return res
}
