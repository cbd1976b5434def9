package effects

import (
	"math"

	"github.com/lyraflex/shadowcore/internal/dsp"
)

const (
	// MaxDelaySeconds bounds the delay line.
	MaxDelaySeconds = 5

	DefaultDelaySeconds  = 0.375
	DefaultDelayFeedback = 0.4
)

// Delay is the feedback delay of the delay send. It returns only the wet
// signal. The delay time glides when retargeted so tempo changes do not
// click. While frozen the input is muted and feedback pinned at 1.
type Delay struct {
	bufL, bufR []float32
	pos        int
	sr         float64
	time       dsp.Smoother
	feedback   dsp.Smoother
	input      dsp.Smoother
	baseFB     float64
	frozen     bool
}

// NewDelay creates a delay of seconds with the given feedback.
func NewDelay(sampleRate int, seconds, feedback float64) *Delay {
	n := sampleRate*MaxDelaySeconds + 2
	ramp := dsp.SmoothingFrames(sampleRate, 100)
	d := &Delay{
		bufL:     make([]float32, n),
		bufR:     make([]float32, n),
		sr:       float64(sampleRate),
		time:     dsp.NewSmoother(clamp(seconds, 0, MaxDelaySeconds), ramp),
		feedback: dsp.NewSmoother(clamp(feedback, 0, 0.95), ramp),
		input:    dsp.NewSmoother(1, dsp.SmoothingFrames(sampleRate, 20)),
		baseFB:   clamp(feedback, 0, 0.95),
	}
	return d
}

// SetTime glides the delay to seconds.
func (d *Delay) SetTime(seconds float64) {
	d.time.SetTarget(clamp(seconds, 0, MaxDelaySeconds))
}

// Time returns the target delay in seconds.
func (d *Delay) Time() float64 { return d.time.Target() }

// TempoDelay is three quarters of a beat at bpm. BPM below 1 counts as 1.
func TempoDelay(bpm float64) float64 {
	return 60 / math.Max(1, bpm) * 0.75
}

// SetTempo syncs the delay time to bpm.
func (d *Delay) SetTempo(bpm float64) { d.SetTime(TempoDelay(bpm)) }

func (d *Delay) SetFeedback(fb float64) {
	d.baseFB = clamp(fb, 0, 0.95)
	if !d.frozen {
		d.feedback.SetTarget(d.baseFB)
	}
}

// SetFreeze holds whatever is in the line.
func (d *Delay) SetFreeze(on bool) {
	d.frozen = on
	if on {
		d.input.SetTarget(0)
		d.feedback.SetTarget(1)
		return
	}
	d.input.SetTarget(1)
	d.feedback.SetTarget(d.baseFB)
}

func (d *Delay) Frozen() bool { return d.frozen }

func (d *Delay) Process(l, r float32) (float32, float32) {
	n := len(d.bufL)
	back := d.time.Next() * d.sr
	if back < 1 {
		back = 1
	}
	rd := float64(d.pos) - back
	if rd < 0 {
		rd += float64(n)
	}
	i := int(rd)
	frac := float32(rd - float64(i))
	j := i + 1
	if j >= n {
		j = 0
	}
	wl := d.bufL[i] + (d.bufL[j]-d.bufL[i])*frac
	wr := d.bufR[i] + (d.bufR[j]-d.bufR[i])*frac

	fb := float32(d.feedback.Next())
	in := float32(d.input.Next())
	d.bufL[d.pos] = l*in + wl*fb
	d.bufR[d.pos] = r*in + wr*fb
	d.pos++
	if d.pos >= n {
		d.pos = 0
	}
	return wl, wr
}

func (d *Delay) Reset() {
	for i := range d.bufL {
		d.bufL[i] = 0
		d.bufR[i] = 0
	}
	d.pos = 0
}
