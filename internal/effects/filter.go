package effects

import "github.com/lyraflex/shadowcore/internal/dsp"

// coefficient refresh interval while a filter glides
const controlRate = 16

// Filter is a stereo biquad whose frequency, Q and gain glide to new targets
// instead of jumping.
type Filter struct {
	bq    dsp.Biquad
	freq  dsp.Smoother
	q     dsp.Smoother
	gain  dsp.Smoother
	count int
}

// NewFilter builds a filter that reaches new settings over glideMs.
func NewFilter(kind dsp.FilterKind, sampleRate int, freq, q, gainDB, glideMs float64) *Filter {
	n := dsp.SmoothingFrames(sampleRate, glideMs)
	f := &Filter{
		freq: dsp.NewSmoother(freq, n),
		q:    dsp.NewSmoother(q, n),
		gain: dsp.NewSmoother(gainDB, n),
	}
	f.bq.Init(kind, float64(sampleRate), freq, q, gainDB)
	return f
}

func (f *Filter) SetFrequency(hz float64) { f.freq.SetTarget(hz) }
func (f *Filter) SetQ(q float64)          { f.q.SetTarget(q) }
func (f *Filter) SetGain(db float64)      { f.gain.SetTarget(db) }

// Frequency returns the target frequency.
func (f *Filter) Frequency() float64 { return f.freq.Target() }
func (f *Filter) Q() float64         { return f.q.Target() }
func (f *Filter) Gain() float64      { return f.gain.Target() }

// Settled reports whether the coefficients have reached their targets.
func (f *Filter) Settled() bool {
	return f.freq.Settled() && f.q.Settled() && f.gain.Settled()
}

// Response is the magnitude response of the current coefficients at hz.
func (f *Filter) Response(hz float64) float64 { return f.bq.Response(hz) }

func (f *Filter) Process(l, r float32) (float32, float32) {
	if !f.Settled() {
		fr, q, g := f.freq.Next(), f.q.Next(), f.gain.Next()
		if f.count%controlRate == 0 || f.Settled() {
			f.bq.Set(fr, q, g)
		}
		f.count++
	}
	a, b := f.bq.ProcessStereo(float64(l), float64(r))
	return float32(a), float32(b)
}

func (f *Filter) Reset() { f.bq.Reset() }
