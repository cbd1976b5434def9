package dsp

import "math"

// Curve is a waveshaper transfer function sampled over [-1, 1].
type Curve []float32

// MakeCurve samples f at n points evenly spread over [-1, 1].
func MakeCurve(n int, f func(x float64) float64) Curve {
	if n < 2 {
		n = 2
	}
	c := make(Curve, n)
	FillCurve(c, f)
	return c
}

// FillCurve resamples f into an existing curve.
func FillCurve(c Curve, f func(x float64) float64) {
	last := float64(len(c) - 1)
	for i := range c {
		c[i] = float32(f(float64(i)*2/last - 1))
	}
}

// Apply maps x through the curve with linear interpolation. Inputs outside
// [-1, 1] take the end values.
func (c Curve) Apply(x float64) float64 {
	n := len(c)
	if n == 0 {
		return x
	}
	v := (x + 1) / 2 * float64(n-1)
	if v <= 0 {
		return float64(c[0])
	}
	if v >= float64(n-1) {
		return float64(c[n-1])
	}
	i := int(v)
	frac := v - float64(i)
	return float64(c[i]) + float64(c[i+1]-c[i])*frac
}

// Saturate is the classic waveshaper distortion
// (3+k)·x·20° / (π + k·|x|), with the 20° expressed in radians.
func Saturate(k float64) func(float64) float64 {
	c := 20 * math.Pi / 180
	return func(x float64) float64 {
		return (3 + k) * x * c / (math.Pi + k*math.Abs(x))
	}
}

// EqualPower returns left and right gains for pan in [-1, 1].
func EqualPower(pan float64) (float64, float64) {
	pan = math.Max(-1, math.Min(pan, 1))
	a := (pan + 1) * math.Pi / 4
	return math.Cos(a), math.Sin(a)
}

// DBToGain converts decibels to a linear factor.
func DBToGain(db float64) float64 { return math.Pow(10, db/20) }
