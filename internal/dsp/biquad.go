package dsp

import (
	"math"
	"math/cmplx"
)

type FilterKind int

const (
	Lowpass FilterKind = iota
	Highpass
	Bandpass
	Notch
	Lowshelf
	Peaking
	Highshelf
)

// Biquad is an RBJ cookbook filter with independent state for two channels.
// Q is the linear quality factor for every kind; shelves use a slope of 1
// and ignore Q.
type Biquad struct {
	kind       FilterKind
	sampleRate float64
	freq, q    float64
	gainDB     float64

	b0, b1, b2, a1, a2 float64
	z                  [2][2]float64
}

func NewBiquad(kind FilterKind, sampleRate int, freq, q, gainDB float64) *Biquad {
	b := &Biquad{}
	b.Init(kind, float64(sampleRate), freq, q, gainDB)
	return b
}

// Init configures a zero or reused Biquad in place and clears its state.
func (b *Biquad) Init(kind FilterKind, sampleRate, freq, q, gainDB float64) {
	*b = Biquad{kind: kind, sampleRate: sampleRate}
	b.Set(freq, q, gainDB)
}

func (b *Biquad) Kind() FilterKind  { return b.kind }
func (b *Biquad) Frequency() float64 { return b.freq }
func (b *Biquad) Q() float64         { return b.q }

// Set recomputes the coefficients. The frequency is clamped to just below
// Nyquist.
func (b *Biquad) Set(freq, q, gainDB float64) {
	nyq := b.sampleRate / 2
	freq = math.Max(1, math.Min(freq, nyq*0.98))
	q = math.Max(q, 1e-4)
	if freq == b.freq && q == b.q && gainDB == b.gainDB && b.b0 != 0 {
		return
	}
	b.freq, b.q, b.gainDB = freq, q, gainDB

	w0 := 2 * math.Pi * freq / b.sampleRate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	A := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch b.kind {
	case Lowpass:
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case Highpass:
		b0, b1, b2 = (1+cosw)/2, -(1 + cosw), (1+cosw)/2
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case Notch:
		b0, b1, b2 = 1, -2*cosw, 1
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case Peaking:
		b0, b1, b2 = 1+alpha*A, -2*cosw, 1-alpha*A
		a0, a1, a2 = 1+alpha/A, -2*cosw, 1-alpha/A
	case Lowshelf, Highshelf:
		sa := 2 * math.Sqrt(A) * sinw / 2 * math.Sqrt2
		if b.kind == Lowshelf {
			b0 = A * ((A + 1) - (A-1)*cosw + sa)
			b1 = 2 * A * ((A - 1) - (A+1)*cosw)
			b2 = A * ((A + 1) - (A-1)*cosw - sa)
			a0 = (A + 1) + (A-1)*cosw + sa
			a1 = -2 * ((A - 1) + (A+1)*cosw)
			a2 = (A + 1) + (A-1)*cosw - sa
		} else {
			b0 = A * ((A + 1) + (A-1)*cosw + sa)
			b1 = -2 * A * ((A - 1) + (A+1)*cosw)
			b2 = A * ((A + 1) + (A-1)*cosw - sa)
			a0 = (A + 1) - (A-1)*cosw + sa
			a1 = 2 * ((A - 1) - (A+1)*cosw)
			a2 = (A + 1) - (A-1)*cosw - sa
		}
	}
	b.b0, b.b1, b.b2 = b0/a0, b1/a0, b2/a0
	b.a1, b.a2 = a1/a0, a2/a0
}

// SetFrequency keeps Q and gain.
func (b *Biquad) SetFrequency(freq float64) { b.Set(freq, b.q, b.gainDB) }

// Process filters one sample on channel 0.
func (b *Biquad) Process(x float64) float64 { return b.tick(0, x) }

func (b *Biquad) ProcessStereo(l, r float64) (float64, float64) {
	return b.tick(0, l), b.tick(1, r)
}

// transposed direct form II
func (b *Biquad) tick(ch int, x float64) float64 {
	z := &b.z[ch]
	y := b.b0*x + z[0]
	z[0] = b.b1*x - b.a1*y + z[1]
	z[1] = b.b2*x - b.a2*y
	return y
}

func (b *Biquad) Reset() { b.z = [2][2]float64{} }

// Response returns the magnitude of the filter's transfer function at freq.
func (b *Biquad) Response(freq float64) float64 {
	w := 2 * math.Pi * freq / b.sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(b.b0, 0) + complex(b.b1, 0)*z1 + complex(b.b2, 0)*z2
	den := 1 + complex(b.a1, 0)*z1 + complex(b.a2, 0)*z2
	return cmplx.Abs(num / den)
}
