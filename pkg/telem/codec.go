package telem

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

const frameVersion = 1

// MarshalFrame encodes a frame into protobuf wire format:
// version, column count, then key, data type and data of each column.
func MarshalFrame(f Frame) []byte {
	size := 4
	for _, s := range f.Series {
		size += 16 + len(s.DataType) + len(s.Data)
	}
	buf := proto.NewBuffer(make([]byte, 0, size))
	buf.EncodeVarint(frameVersion)
	buf.EncodeVarint(uint64(len(f.Keys)))
	for i, key := range f.Keys {
		buf.EncodeVarint(uint64(key))
		buf.EncodeStringBytes(string(f.Series[i].DataType))
		buf.EncodeRawBytes(f.Series[i].Data)
	}
	return buf.Bytes()
}

// UnmarshalFrame decodes a frame encoded by MarshalFrame.
func UnmarshalFrame(data []byte) (f Frame, err error) {
	buf := proto.NewBuffer(data)
	version, err := buf.DecodeVarint()
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if version != frameVersion {
		return f, fmt.Errorf("%w: version %d", ErrCorruptFrame, version)
	}
	count, err := buf.DecodeVarint()
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if count > uint64(len(data)) {
		return f, fmt.Errorf("%w: %d columns", ErrCorruptFrame, count)
	}
	f.Keys = make([]ChannelKey, 0, count)
	f.Series = make([]Series, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := buf.DecodeVarint()
		if err != nil {
			return f, fmt.Errorf("%w: column %d: %v", ErrCorruptFrame, i, err)
		}
		dt, err := buf.DecodeStringBytes()
		if err != nil {
			return f, fmt.Errorf("%w: column %d: %v", ErrCorruptFrame, i, err)
		}
		raw, err := buf.DecodeRawBytes(true)
		if err != nil {
			return f, fmt.Errorf("%w: column %d: %v", ErrCorruptFrame, i, err)
		}
		s := Series{DataType: DataType(dt), Data: raw}
		if d := s.DataType.Density(); d == 0 || len(raw)%d != 0 {
			return f, fmt.Errorf("%w: column %d: %d bytes of %s", ErrCorruptFrame, i, len(raw), dt)
		}
		f.Append(ChannelKey(key), s)
	}
	return f, nil
}
