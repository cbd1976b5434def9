package effects

import (
	"math"
	"math/rand"

	"github.com/lyraflex/shadowcore/internal/dsp"
)

const (
	DefaultMasterGain = 0.8

	filterOpen  = 22000
	filterFloor = 10
	lowpassMin  = 100
	highpassMax = 15000
)

// MasterFilterFrequencies maps the master filter control in [-1, 1] to the
// lowpass and highpass cutoffs. Negative values close the lowpass, positive
// values raise the highpass, zero leaves both open.
func MasterFilterFrequencies(v float64) (lowpass, highpass float64) {
	v = clamp(v, -1, 1)
	if v < 0 {
		return math.Max(lowpassMin, filterOpen*math.Pow(0.005, -v)), filterFloor
	}
	return filterOpen, math.Min(highpassMax, filterFloor+highpassMax*v*v)
}

// XYCrush is the crush amount set by the Y axis of the performance pad.
func XYCrush(y float64) float64 { return math.Max(0, (clamp(y, 0, 1)-0.5)*2) * 0.5 }

// XYResonance is the filter Q set by the Y axis of the performance pad.
func XYResonance(y float64) float64 { return math.Max(1, clamp(y, 0, 1)*20) }

// Master is the fixed output graph:
//
//	gain -> highpass -> lowpass -> crusher -+-------------------+-> limiter
//	                                        +-> send -> delay --+
//	                                        +-> send -> reverb -+
type Master struct {
	gain       dsp.Smoother
	hp, lp     *Filter
	crusher    *Crusher
	pre        *Chain
	delay      *Delay
	reverb     *Reverb
	delaySend  dsp.Smoother
	reverbSend dsp.Smoother
	limiter    *Limiter

	filter     float64
	reverbIdle int
}

// NewMaster builds the graph. rng seeds the reverb impulse.
func NewMaster(sampleRate int, rng *rand.Rand) *Master {
	ramp := dsp.SmoothingFrames(sampleRate, 100)
	m := &Master{
		gain:       dsp.NewSmoother(DefaultMasterGain, ramp),
		hp:         NewFilter(dsp.Highpass, sampleRate, filterFloor, 1, 0, 50),
		lp:         NewFilter(dsp.Lowpass, sampleRate, filterOpen, 1, 0, 50),
		crusher:    NewCrusher(),
		delay:      NewDelay(sampleRate, DefaultDelaySeconds, DefaultDelayFeedback),
		reverb:     NewReverb(sampleRate, rng),
		delaySend:  dsp.NewSmoother(0, ramp),
		reverbSend: dsp.NewSmoother(0, ramp),
		limiter:    NewMasterLimiter(sampleRate),
	}
	m.pre = NewChain(m.hp, m.lp, m.crusher)
	m.reverbIdle = m.reverb.Span()
	return m
}

// SetMasterFilter sets the single tilt control, clamped to [-1, 1].
func (m *Master) SetMasterFilter(v float64) {
	m.filter = clamp(v, -1, 1)
	lp, hp := MasterFilterFrequencies(m.filter)
	m.lp.SetFrequency(lp)
	m.hp.SetFrequency(hp)
}

func (m *Master) MasterFilter() float64 { return m.filter }

// FilterCutoffs returns the target lowpass and highpass frequencies.
func (m *Master) FilterCutoffs() (lowpass, highpass float64) {
	return m.lp.Frequency(), m.hp.Frequency()
}

// SetXY drives the performance pad: X sweeps the master filter, Y adds
// resonance and, above the middle, crush.
func (m *Master) SetXY(x, y float64) {
	m.SetMasterFilter(2*clamp(x, 0, 1) - 1)
	q := XYResonance(y)
	m.lp.SetQ(q)
	m.hp.SetQ(q)
	m.SetCrush(XYCrush(y))
}

func (m *Master) Resonance() float64 { return m.lp.Q() }

func (m *Master) SetCrush(amount float64) { m.crusher.SetAmount(amount) }
func (m *Master) Crush() float64          { return m.crusher.Amount() }

func (m *Master) SetDelaySend(v float64)  { m.delaySend.SetTarget(clamp(v, 0, 1)) }
func (m *Master) SetReverbSend(v float64) { m.reverbSend.SetTarget(clamp(v, 0, 1)) }
func (m *Master) DelaySend() float64      { return m.delaySend.Target() }
func (m *Master) ReverbSend() float64     { return m.reverbSend.Target() }

// SetTempo re-syncs the delay to three quarters of a beat.
func (m *Master) SetTempo(bpm float64) { m.delay.SetTempo(bpm) }

func (m *Master) DelayTime() float64 { return m.delay.Time() }

func (m *Master) SetDelayFreeze(on bool) { m.delay.SetFreeze(on) }

// SetVolume sets the master gain, clamped to [0, 1].
func (m *Master) SetVolume(v float64) { m.gain.SetTarget(clamp(v, 0, 1)) }
func (m *Master) Volume() float64     { return m.gain.Target() }

func (m *Master) Process(l, r float32) (float32, float32) {
	g := float32(m.gain.Next())
	l, r = m.pre.Process(l*g, r*g)

	ds := float32(m.delaySend.Next())
	dl, dr := m.delay.Process(l*ds, r*ds)

	rs := float32(m.reverbSend.Next())
	var rl, rr float32
	if rs != 0 {
		m.reverbIdle = 0
	}
	if m.reverbIdle < m.reverb.Span() {
		rl, rr = m.reverb.Process(l*rs, r*rs)
		if rs == 0 {
			m.reverbIdle++
		}
	}
	return m.limiter.Process(l+dl+rl, r+dr+rr)
}

// ProcessBuffer runs Process over interleaved stereo in place.
func (m *Master) ProcessBuffer(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = m.Process(buf[i], buf[i+1])
	}
}

// Reset clears every delay line and filter state. Control targets are kept.
func (m *Master) Reset() {
	m.pre.Reset()
	m.delay.Reset()
	m.reverb.Reset()
	m.limiter.Reset()
	m.reverbIdle = m.reverb.Span()
}
