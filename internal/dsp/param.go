// Package dsp holds the small signal-processing building blocks shared by the
// voices, the effects chain and the deck.
package dsp

import "math"

type eventKind uint8

const (
	evSet eventKind = iota
	evLinear
	evExp
)

type event struct {
	kind   eventKind
	at     int64
	target float64
}

const maxEvents = 8

// Param is a sample-clocked automation lane. Times are frames relative to the
// moment the param was created. Ramps start at the previous event (or at the
// last immediate Set) and end at the ramp's own time, the way a Web Audio
// AudioParam schedules them.
//
// A Param holds at most a handful of pending events; scheduling beyond that
// drops the oldest pending event.
type Param struct {
	value  float64
	now    int64
	fromT  int64
	fromV  float64
	events [maxEvents]event
	n      int
}

func NewParam(v float64) Param {
	return Param{value: v, fromV: v}
}

// Set jumps to v immediately and discards pending events.
func (p *Param) Set(v float64) {
	p.value = v
	p.fromV = v
	p.fromT = p.now
	p.n = 0
}

// SetAt jumps to v at frame at.
func (p *Param) SetAt(v float64, at int64) { p.push(event{evSet, at, v}) }

// LinearTo ramps linearly to v, arriving at frame at.
func (p *Param) LinearTo(v float64, at int64) { p.push(event{evLinear, at, v}) }

// ExpTo ramps exponentially to v, arriving at frame at. Both ends of an
// exponential ramp are kept away from zero; a ramp "to zero" therefore ends
// at a tiny value of the same sign.
func (p *Param) ExpTo(v float64, at int64) { p.push(event{evExp, at, v}) }

func (p *Param) push(e event) {
	if p.n == maxEvents {
		copy(p.events[:], p.events[1:])
		p.n--
	}
	i := p.n
	for i > 0 && p.events[i-1].at > e.at {
		p.events[i] = p.events[i-1]
		i--
	}
	p.events[i] = e
	p.n++
}

// Value returns the value produced by the last call to Next.
func (p *Param) Value() float64 { return p.value }

// Next returns the value at the current frame and advances one frame.
func (p *Param) Next() float64 {
	for p.n > 0 && p.events[0].at <= p.now {
		p.value = p.events[0].target
		p.fromT = p.events[0].at
		p.fromV = p.value
		copy(p.events[:], p.events[1:p.n])
		p.n--
	}
	if p.n > 0 {
		e := p.events[0]
		span := float64(e.at - p.fromT)
		frac := 0.0
		if span > 0 {
			frac = float64(p.now-p.fromT) / span
		}
		switch e.kind {
		case evLinear:
			p.value = p.fromV + (e.target-p.fromV)*frac
		case evExp:
			p.value = expInterp(p.fromV, e.target, frac)
		}
	}
	p.now++
	return p.value
}

const expFloor = 1e-4

func expInterp(from, to, frac float64) float64 {
	sign := 1.0
	if from < 0 || (from == 0 && to < 0) {
		sign = -1
	}
	a := math.Max(math.Abs(from), expFloor)
	b := math.Max(math.Abs(to), expFloor)
	if (from < 0) != (to < 0) && to != 0 && from != 0 {
		return from + (to-from)*frac
	}
	return sign * a * math.Pow(b/a, frac)
}
