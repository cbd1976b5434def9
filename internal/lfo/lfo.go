// Package lfo provides the low-frequency modulators used inside voices.
package lfo

import "math"

type Wave int

const (
	Sine Wave = iota
	Triangle
	Square
	Saw
	// SampleHold holds a pseudo-random value for one cycle.
	SampleHold
)

// LFO produces one modulation value per sample in [-depth, +depth].
type LFO struct {
	depth  float64
	rateHz float64
	wave   Wave
	phase  float64
	held   float64
	seed   uint32
}

func New(wave Wave, rateHz, depth float64) LFO {
	l := LFO{seed: 0x9e3779b9}
	l.Set(wave, rateHz, depth)
	return l
}

func (l *LFO) Set(wave Wave, rateHz, depth float64) {
	if wave < Sine || wave > SampleHold {
		wave = Triangle
	}
	l.wave, l.rateHz, l.depth = wave, rateHz, depth
}

// Seed sets the sample-and-hold sequence and starts at phase p in [0,1).
func (l *LFO) Seed(seed uint32, p float64) {
	if seed == 0 {
		seed = 1
	}
	l.seed = seed
	l.phase = p - math.Floor(p)
	l.held = l.rand()
}

func (l *LFO) Active() bool { return l.depth != 0 && l.rateHz != 0 }

// Sample advances one sample and returns the modulation value.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate == 0 {
		return 0
	}
	var v float64
	switch l.wave {
	case Sine:
		v = math.Sin(2 * math.Pi * l.phase)
	case Square:
		v = -1
		if l.phase < 0.5 {
			v = 1
		}
	case Saw:
		v = 1 - 2*l.phase
	case SampleHold:
		v = l.held
	default:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	}
	l.phase += l.rateHz / sampleRate
	if l.phase >= 1 {
		l.phase -= math.Floor(l.phase)
		if l.wave == SampleHold {
			l.held = l.rand()
		}
	}
	return v * l.depth
}

func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
}

// xorshift32 mapped to [-1, 1)
func (l *LFO) rand() float64 {
	x := l.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	l.seed = x
	return float64(x)/float64(1<<31) - 1
}
