package fc

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderFramesPackets(t *testing.T) {
	telemetry, err := EncodeTelemetry([]Sample{{Value: 7, Timestamp: 9}})
	require.NoError(t, err)
	packets := []Packet{
		EncodeAck(OpValve),
		telemetry,
		{Opcode: 0x55},
		EncodeValve(0xf0, 0x10),
		EncodeCalibration([CalibrationWords]uint64{1, 2, 3, 4}),
		EncodeFSM(2),
	}
	var buf bytes.Buffer
	for _, pkt := range packets {
		_, err := pkt.WriteTo(&buf)
		require.NoError(t, err)
	}

	r := NewReader(&buf)
	for n, expect := range packets {
		pkt, err := r.ReadPacket()
		require.NoErrorf(t, err, "packet[%d]", n)
		require.Equalf(t, expect.Bytes(), pkt.Bytes(), "packet[%d]", n)
	}
	_, err = r.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestReaderTruncated(t *testing.T) {
	testCases := []struct {
		name string
		in   []byte
	}{
		{"telemetry count", []byte{0x01}},
		{"telemetry samples", []byte{0x01, 2, 0, 0, 0, 0}},
		{"valve", []byte{0x03, 0, 0, 0}},
		{"ack", []byte{0x0a}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tc.in)).ReadPacket()
			require.Equal(t, io.ErrUnexpectedEOF, err)
		})
	}
}
