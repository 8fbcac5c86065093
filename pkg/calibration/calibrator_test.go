package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireAllNear(t *testing.T, expected, actual []float32, delta float64) {
	require.Len(t, actual, len(expected))
	for i := range expected {
		require.InDeltaf(t, expected[i], actual[i], delta, "index %d", i)
	}
}

func TestPTLinear(t *testing.T) {
	cal := NewPT(0.5, 250)
	volts := []float32{0.5, 4.5}
	cal.Transform(volts, 0, len(volts))
	requireAllNear(t, []float32{0, 1000}, volts, 0.1)
}

func TestPTAmbient(t *testing.T) {
	cal := NewPT(0.5, 250)
	_, set := cal.Ambient()
	require.False(t, set)

	volts := []float32{0.504, 0.504}
	cal.Transform(volts, 0, len(volts))
	requireAllNear(t, []float32{1, 1}, volts, 0.1)
	ambient, set := cal.Ambient()
	require.True(t, set)
	require.InDelta(t, 1, ambient, 0.1)

	volts = []float32{0.504, 0.504}
	cal.Transform(volts, 0, len(volts))
	requireAllNear(t, []float32{0, 0}, volts, 0.1)

	volts = []float32{0.508, 0.508}
	cal.Transform(volts, 0, len(volts))
	requireAllNear(t, []float32{1, 1}, volts, 0.1)
}

func TestPTSubRange(t *testing.T) {
	cal := NewPT(0, 2)
	data := []float32{1, 1, 3, 5, 1}
	cal.Transform(data, 2, 4)
	require.Equal(t, []float32{1, 1, 6, 10, 1}, data)
	ambient, _ := cal.Ambient()
	require.Equal(t, float32(8), ambient)

	// empty ranges don't capture ambient.
	cal = NewPT(0, 2)
	cal.Transform(data, 3, 3)
	_, set := cal.Ambient()
	require.False(t, set)
}

func TestTC(t *testing.T) {
	cal := NewTC()
	mv := []float32{-6.10, -4.419, -2.153, 0, 1.196, 3.814, 5.228, 8.237, 9.228, 9.876}
	temps := []float32{-240, -140, -60, 0, 30, 90, 120, 180, 200, 210}
	cal.Transform(mv, 0, len(mv))
	requireAllNear(t, temps, mv, 1.5)
}

func TestTCBoundaries(t *testing.T) {
	testCases := []struct {
		mv     float32
		expect float32
	}{
		{-4.648, -150},
		{0, 0},
		{9.288, 200},
	}
	for _, tc := range testCases {
		require.InDeltaf(t, tc.expect, Temperature(tc.mv), 1.5, "%g mV", tc.mv)
	}
	require.False(t, math.IsNaN(float64(Temperature(-6.3))))
	for _, mv := range []float32{-6.31, 20.872, 100, float32(math.Inf(-1))} {
		require.Truef(t, math.IsNaN(float64(Temperature(mv))), "%g mV", mv)
	}
}

func TestNOOP(t *testing.T) {
	cal := NewNOOP()
	data := []float32{-1, 0, 0.5, 1e6, float32(math.Inf(1))}
	expect := append([]float32(nil), data...)
	for i := 0; i < 3; i++ {
		cal.Transform(data, 0, len(data))
		require.Equal(t, expect, data)
	}
}

func TestParseKind(t *testing.T) {
	require.Equal(t, KindPT, ParseKind("PT"))
	require.Equal(t, KindTC, ParseKind("TC"))
	require.Equal(t, KindNOOP, ParseKind(""))
	require.Equal(t, KindNOOP, ParseKind("LC"))
	require.Equal(t, KindNOOP, ParseKind("pt"))
}
