// Package clock turns a tempo into sixteenth-note ticks on a sample counter.
//
// The clock never looks at wall time. The render loop asks how many frames
// remain before the next tick, renders exactly that many, advances the clock
// and collects the tick. Tick k of a constant tempo lands on the first frame
// at or after k*SamplesPerStep, so the step grid never drifts regardless of
// how the host slices its buffers.
package clock

import (
	"math"

	"github.com/lyraflex/shadowcore/internal/dsp"
)

// BPMRamp is how long a tempo change takes to settle, in milliseconds.
const BPMRamp = 100

type Clock struct {
	sampleRate float64
	bpm        dsp.Smoother
	now        int64
	step       int

	// The next threshold is anchor + (step-anchorStep)*sps. Re-anchoring only
	// when the tempo changes keeps a constant tempo free of accumulated
	// rounding.
	anchor     float64
	anchorStep int
	sps        float64
}

// New returns a clock whose first tick is due immediately.
func New(sampleRate int, bpm float64) *Clock {
	if bpm <= 0 {
		bpm = 120
	}
	c := &Clock{
		sampleRate: float64(sampleRate),
		bpm:        dsp.NewSmoother(bpm, dsp.SmoothingFrames(sampleRate, BPMRamp)),
	}
	c.sps = c.samplesPerStep(bpm)
	return c
}

// SamplesPerStep returns sr*60/(bpm*4) for the current tempo.
func SamplesPerStep(sampleRate int, bpm float64) float64 {
	return float64(sampleRate) * 60 / (bpm * 4)
}

func (c *Clock) samplesPerStep(bpm float64) float64 {
	return c.sampleRate * 60 / (bpm * 4)
}

// SetBPM ramps the tempo to bpm. Non-positive values are ignored. The new
// tempo applies from the next step boundary onward.
func (c *Clock) SetBPM(bpm float64) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return
	}
	c.bpm.SetTarget(bpm)
}

// BPM returns the current (possibly mid-ramp) tempo.
func (c *Clock) BPM() float64 { return c.bpm.Value() }

// SamplesPerStep returns the step length at the current tempo.
func (c *Clock) SamplesPerStep() float64 { return c.samplesPerStep(c.bpm.Value()) }

// Now returns the number of frames the clock has advanced.
func (c *Clock) Now() int64 { return c.now }

// Seconds converts Now to seconds.
func (c *Clock) Seconds() float64 { return float64(c.now) / c.sampleRate }

// NextStep returns the index the next tick will carry.
func (c *Clock) NextStep() int { return c.step }

// Reset zeroes the step counter and makes the next tick due now.
func (c *Clock) Reset() {
	c.step = 0
	c.anchor = float64(c.now)
	c.anchorStep = 0
	c.sps = c.SamplesPerStep()
}

func (c *Clock) threshold() float64 {
	return c.anchor + float64(c.step-c.anchorStep)*c.sps
}

// FramesUntilTick returns how many frames can be rendered before the next
// tick. Zero means a tick is due.
func (c *Clock) FramesUntilTick() int {
	d := math.Ceil(c.threshold()) - float64(c.now)
	if d <= 0 {
		return 0
	}
	if d > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(d)
}

// Due reports whether a tick must be collected before rendering more frames.
func (c *Clock) Due() bool { return c.FramesUntilTick() == 0 }

// Advance moves the clock forward by frames. Callers must not advance past a
// due tick.
func (c *Clock) Advance(frames int) {
	if frames <= 0 {
		return
	}
	c.now += int64(frames)
	c.bpm.Advance(frames)
}

// Tick consumes the due tick and returns its step index, counting from zero
// since the last Reset.
func (c *Clock) Tick() int {
	n := c.step
	next := c.threshold()
	c.step++
	if sps := c.SamplesPerStep(); sps != c.sps {
		c.anchor = next
		c.anchorStep = n
		c.sps = sps
	}
	return n
}
