package dsp

import "math"

type Wave int

const (
	Sine Wave = iota
	Square
	Saw
	Triangle
)

// Osc is a phase accumulator. Square, saw and pulse outputs are band limited
// with polyBLEP correction; the triangle is naive.
type Osc struct {
	phase float64
}

// NewOscAt starts an oscillator at phase p in [0,1).
func NewOscAt(p float64) Osc { return Osc{phase: p - math.Floor(p)} }

func (o *Osc) Phase() float64 { return o.phase }

// Next returns one sample of w at freq and advances the phase. A negative
// frequency runs the phase backwards.
func (o *Osc) Next(w Wave, freq, sampleRate float64) float64 {
	step := math.Max(-0.5, math.Min(freq/sampleRate, 0.5))
	dt := math.Abs(step)
	p := o.phase
	var y float64
	switch w {
	case Sine:
		y = math.Sin(2 * math.Pi * p)
	case Square:
		y = pulse(p, dt, 0.5)
	case Saw:
		y = 2*p - 1 - polyBLEP(p, dt)
	case Triangle:
		q := p + 0.25
		y = 1 - 4*math.Abs(q-math.Floor(q)-0.5)
	}
	o.advance(step)
	return y
}

// NextPulse returns a pulse wave with the given duty cycle in (0,1).
func (o *Osc) NextPulse(freq, sampleRate, width float64) float64 {
	dt := math.Abs(freq) / sampleRate
	if dt > 0.5 {
		dt = 0.5
	}
	width = math.Max(0.02, math.Min(width, 0.98))
	y := pulse(o.phase, dt, width)
	o.advance(dt)
	return y
}

func (o *Osc) advance(step float64) {
	o.phase += step
	if o.phase >= 1 || o.phase < 0 {
		o.phase -= math.Floor(o.phase)
	}
}

func pulse(p, dt, width float64) float64 {
	y := -1.0
	if p < width {
		y = 1
	}
	y += polyBLEP(p, dt)
	q := p - width
	if q < 0 {
		q++
	}
	y -= polyBLEP(q, dt)
	return y
}

func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	switch {
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}
