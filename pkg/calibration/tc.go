package calibration

import "math"

// InvalidTemperature is produced for inputs outside all bands.
var InvalidTemperature = float32(math.NaN())

// tcBand holds the Type T thermocouple inverse coefficients for
// millivolt inputs in [lower, upper).
type tcBand struct {
	lower, upper float32
	t0, v0       float32
	p            [4]float32
	q            [3]float32
}

var tcBands = [...]tcBand{
	{
		lower: -6.3, upper: -4.648,
		t0: -1.9243000e+02, v0: -5.4798963e+00,
		p: [4]float32{5.9572141e+01, 1.9675733e+00, -7.8176011e+01, -1.0963280e+01},
		q: [3]float32{2.7498092e-01, -1.3768944e+00, -4.5209805e-01},
	},
	{
		lower: -4.648, upper: 0,
		t0: -6.0000000e+01, v0: -2.1528350e+00,
		p: [4]float32{3.0449332e+01, -1.2946560e+00, -3.0500735e+00, -1.9226856e-01},
		q: [3]float32{6.9877863e-03, -1.0596207e-01, -1.0774995e-02},
	},
	{
		lower: 0, upper: 9.288,
		t0: 1.3500000e+02, v0: 5.9588600e+00,
		p: [4]float32{2.0325591e+01, 3.3013079e+00, 1.2638462e-01, -8.2883695e-04},
		q: [3]float32{1.7595577e-01, 7.9740521e-03, 0},
	},
	{
		lower: 9.288, upper: 20.872,
		t0: 3.0000000e+02, v0: 1.4861780e+01,
		p: [4]float32{1.7214707e+01, -9.3862713e-01, -7.3509066e-02, 2.9576140e-04},
		q: [3]float32{-4.8095795e-02, -4.7352054e-03, 0},
	},
}

// Temperature converts a Type T thermocouple reading in mV to Celsius.
func Temperature(mv float32) float32 {
	for i := range tcBands {
		b := &tcBands[i]
		if mv < b.lower || mv >= b.upper {
			continue
		}
		x := mv - b.v0
		num := x * (b.p[0] + x*(b.p[1]+x*(b.p[2]+b.p[3]*x)))
		den := 1 + x*(b.q[0]+x*(b.q[1]+b.q[2]*x))
		return b.t0 + num/den
	}
	return InvalidTemperature
}
