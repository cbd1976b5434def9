// Package voice renders the procedural instruments. Every firing becomes a
// short-lived voice that schedules its own envelopes and removes itself once
// its decay has run out.
package voice

import (
	"math"
	"math/rand"

	"github.com/lyraflex/shadowcore/internal/dsp"
	"github.com/lyraflex/shadowcore/internal/lfo"
	"github.com/lyraflex/shadowcore/internal/session"
)

const (
	// MaxVoices bounds polyphony. The oldest voice is dropped when a new one
	// would exceed it.
	MaxVoices = 96

	// frames between filter coefficient updates of swept filters
	controlRate = 16

	kickStart = 150.0
)

type Bank struct {
	sampleRate float64
	rng        *rand.Rand
	voices     []*voice
	pool       []*voice
	satCurve   dsp.Curve
}

func NewBank(sampleRate int, rng *rand.Rand) *Bank {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Bank{
		sampleRate: float64(sampleRate),
		rng:        rng,
		voices:     make([]*voice, 0, MaxVoices),
		satCurve:   dsp.MakeCurve(4096, dsp.Saturate(100)),
	}
}

// Trigger starts a voice for track t at the next rendered frame. Unknown
// instruments are ignored.
func (b *Bank) Trigger(track int, t *session.Track, volume float64) {
	idx := t.Type.Index()
	if idx < 0 || synths[idx] == nil || volume <= 0 {
		return
	}
	if len(b.voices) >= MaxVoices {
		b.release(b.voices[0])
		b.voices = append(b.voices[:0], b.voices[1:]...)
	}
	v := b.acquire()
	v.track = track
	v.inst = t.Type
	v.sr = b.sampleRate
	v.p = t.Params
	v.def = session.DefaultParams(t.Type)
	v.vol = math.Min(volume, 1)
	v.gl, v.gr = dsp.EqualPower(t.Pan)
	synths[idx](v, b)
	if v.life <= 0 {
		b.release(v)
		return
	}
	b.voices = append(b.voices, v)
}

// Render writes the sum of all voices into dst as interleaved stereo,
// overwriting its contents.
func (b *Bank) Render(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	frames := int64(len(dst) / 2)
	live := b.voices[:0]
	for _, v := range b.voices {
		n := frames
		if rem := v.life - v.age; rem < n {
			n = rem
		}
		for i := int64(0); i < n; i++ {
			s := v.next(v)
			if math.IsNaN(s) || math.IsInf(s, 0) {
				v.age = v.life
				break
			}
			dst[2*i] += float32(s * v.gl)
			dst[2*i+1] += float32(s * v.gr)
			v.age++
		}
		if v.age < v.life {
			live = append(live, v)
		} else {
			b.release(v)
		}
	}
	for i := len(live); i < len(b.voices); i++ {
		b.voices[i] = nil
	}
	b.voices = live
}

// Active returns the number of sounding voices.
func (b *Bank) Active() int { return len(b.voices) }

// Reset silences every voice.
func (b *Bank) Reset() {
	for _, v := range b.voices {
		b.release(v)
	}
	b.voices = b.voices[:0]
}

func (b *Bank) acquire() *voice {
	if n := len(b.pool); n > 0 {
		v := b.pool[n-1]
		b.pool = b.pool[:n-1]
		*v = voice{}
		return v
	}
	return &voice{}
}

func (b *Bank) release(v *voice) {
	if len(b.pool) < MaxVoices {
		b.pool = append(b.pool, v)
	}
}

type voice struct {
	track int
	inst  session.Instrument
	sr    float64
	p     session.TrackParams
	def   session.TrackParams
	vol   float64
	gl    float64
	gr    float64
	age   int64
	life  int64
	next  func(v *voice) float64

	osc   [4]dsp.Osc
	ratio [4]float64
	noise dsp.Noise
	amp   dsp.Param
	freq  dsp.Param
	cut   dsp.Param
	mod   dsp.Param
	f1    dsp.Biquad
	f2    dsp.Biquad
	lfo   lfo.LFO
	curve dsp.Curve
	wave  dsp.Wave
	mix   float64
}

func (v *voice) frames(sec float64) int64 { return int64(sec * v.sr) }

func (v *voice) decay() float64 {
	if v.p.Decay > 0 {
		return v.p.Decay
	}
	return v.def.Decay
}

func (v *voice) pitch() float64 {
	if v.p.Pitch > 0 {
		return v.p.Pitch
	}
	return v.def.Pitch
}

func (v *voice) cutoff() float64 {
	if v.p.FilterCutoff > 0 {
		return v.p.FilterCutoff
	}
	return v.def.FilterCutoff
}

func (v *voice) tone() float64 { return clamp01(v.p.Tone) }

// toneExcess maps tone above the instrument's factory tone onto 0..1. It is
// zero at or below the factory value.
func (v *voice) toneExcess() float64 {
	d := clamp01(v.def.Tone)
	if d >= 1 {
		return 0
	}
	return math.Max(0, v.tone()-d) / (1 - d)
}

// percussive starts p at peak and decays it exponentially to peak*floor
// over decay seconds. It returns the frame count after which p is silent.
func (v *voice) percussive(p *dsp.Param, peak, floor, decay float64) int64 {
	end := v.frames(decay)
	*p = dsp.NewParam(peak)
	p.ExpTo(peak*floor, end)
	p.SetAt(0, end)
	return end + 1
}

// swell fades v.amp in linearly to peak over attack seconds, then decays it
// exponentially to -60 dB by total seconds after the start.
func (v *voice) swell(peak, attack, total float64) int64 {
	a := v.frames(attack)
	end := max(v.frames(total), a+v.frames(0.05))
	v.amp = dsp.NewParam(0)
	v.amp.LinearTo(peak, a)
	v.amp.ExpTo(peak*0.001, end)
	v.amp.SetAt(0, end)
	return end + 1
}

// sweep refreshes a filter's cutoff from v.cut at control rate.
func (v *voice) sweep(f *dsp.Biquad) {
	c := v.cut.Next()
	if v.age%controlRate == 0 {
		f.SetFrequency(c)
	}
}

func clamp01(x float64) float64 { return math.Max(0, math.Min(x, 1)) }
