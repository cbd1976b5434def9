package voice

import (
	"math"

	"github.com/lyraflex/shadowcore/internal/dsp"
	"github.com/lyraflex/shadowcore/internal/lfo"
	"github.com/lyraflex/shadowcore/internal/session"
)

// synth configures v for one firing: envelopes, filters, lifetime and the
// per-sample render function. Gains below are relative to the firing volume.
type synth func(v *voice, b *Bank)

// synths is indexed by session.Instrument.Index.
var synths = [session.NumInstruments]synth{
	kick,        // kick
	snare,       // snare
	hihat,       // hihat_closed
	hihat,       // hihat_open
	fmBass,      // bass_fm
	tom,         // tom_low
	tom,         // tom_mid
	tom,         // tom_high
	rim,         // rim_shot
	clap,        // hand_clap
	cymbal,      // crash
	cymbal,      // ride
	lead,        // lead_square
	padSaw,      // pad_saw
	pluckSine,   // pluck_sine
	acid,        // acid_303
	sub808,      // bass_sub_808
	lead,        // lead_pwm
	padSaw,      // pad_choir
	pluckSine,   // arp_pluck
	glitch,      // fx_glitch
	padEthereal, // pad_ethereal
}

// Kick: sine falling exponentially from 150 Hz toward zero over the decay,
// through a lowpass. Pitch does not retune it.
func kick(v *voice, b *Bank) {
	d := v.decay()
	v.freq = dsp.NewParam(kickStart)
	v.freq.ExpTo(0.01, v.frames(d))
	v.f1.Init(dsp.Lowpass, v.sr, v.cutoff(), 1, 0)
	v.life = v.percussive(&v.amp, v.vol, 0.001, d)
	v.next = renderKick
}

func renderKick(v *voice) float64 {
	s := v.osc[0].Next(dsp.Sine, v.freq.Next(), v.sr)
	return v.f1.Process(s * v.amp.Next())
}

// Snare: highpassed noise over the decay plus a sine body gliding 250 to
// 100 Hz in 0.1 s and fading in 0.15 s.
func snare(v *voice, b *Bank) {
	d := v.decay()
	v.noise = dsp.NewNoise(b.rng.Intn(1<<17), 1)
	v.f1.Init(dsp.Highpass, v.sr, v.cutoff(), 0.7, 0)
	noiseLife := v.percussive(&v.amp, v.vol, 0.01, d)
	v.freq = dsp.NewParam(250)
	v.freq.ExpTo(100, v.frames(0.1))
	bodyLife := v.percussive(&v.mod, v.vol*0.5, 0.02, 0.15)
	v.life = max(noiseLife, bodyLife)
	v.next = renderSnare
}

func renderSnare(v *voice) float64 {
	n := v.f1.Process(v.noise.Next()) * v.amp.Next()
	body := v.osc[0].Next(dsp.Sine, v.freq.Next(), v.sr) * v.mod.Next()
	return n + body
}

// Hi-hat: noise through a bandpass at the cutoff and a 7 kHz highpass.
// Closed hats always decay in 50 ms; open hats use decay + 0.2 s.
func hihat(v *voice, b *Bank) {
	d := 0.05
	if v.inst == session.HihatOpen {
		d = v.decay() + 0.2
	}
	v.noise = dsp.NewNoise(b.rng.Intn(1<<17), 1)
	v.f1.Init(dsp.Bandpass, v.sr, v.cutoff(), 1, 0)
	v.f2.Init(dsp.Highpass, v.sr, 7000, 0.7, 0)
	v.life = v.percussive(&v.amp, v.vol*0.6, 1.0/60, d)
	v.next = renderHihat
}

func renderHihat(v *voice) float64 {
	return v.f2.Process(v.f1.Process(v.noise.Next())) * v.amp.Next()
}

// Tom: sine falling to half its base over 0.3 s. Each variant has a fixed
// base frequency; pitch does not retune it.
func tom(v *voice, b *Bank) {
	f := tomBase(v.inst)
	v.freq = dsp.NewParam(f)
	v.freq.ExpTo(f/2, v.frames(0.3))
	v.life = v.percussive(&v.amp, v.vol, 0.001, v.decay())
	v.next = renderTom
}

func tomBase(inst session.Instrument) float64 {
	switch inst {
	case session.TomLow:
		return 80
	case session.TomMid:
		return 120
	case session.TomHigh:
		return 160
	}
	return 100
}

func renderTom(v *voice) float64 {
	return v.osc[0].Next(dsp.Sine, v.freq.Next(), v.sr) * v.amp.Next()
}

// Rim: a 50 ms triangle blip at three times the pitch.
func rim(v *voice, b *Bank) {
	v.ratio[0] = 3 * v.pitch()
	v.life = v.percussive(&v.amp, v.vol*0.8, 0.001/0.8, 0.05)
	v.next = renderRim
}

func renderRim(v *voice) float64 {
	return v.osc[0].Next(dsp.Triangle, v.ratio[0], v.sr) * v.amp.Next()
}

// Clap: noise through a 1.2 kHz bandpass, three 10 ms bursts within the
// first 50 ms, the last one ringing out until the decay.
func clap(v *voice, b *Bank) {
	v.noise = dsp.NewNoise(b.rng.Intn(1<<17), 1)
	v.f1.Init(dsp.Bandpass, v.sr, 1200, 1, 0)
	peak := v.vol * 0.5
	ms := func(n float64) int64 { return v.frames(n / 1000) }
	v.amp = dsp.NewParam(0)
	v.amp.LinearTo(peak, ms(10))
	v.amp.LinearTo(0, ms(20))
	v.amp.LinearTo(peak, ms(30))
	v.amp.LinearTo(0, ms(40))
	v.amp.LinearTo(peak, ms(50))
	end := max(v.frames(v.decay()), ms(60))
	v.amp.ExpTo(peak*0.001, end)
	v.amp.SetAt(0, end)
	v.life = end + 1
	v.next = renderClap
}

func renderClap(v *voice) float64 {
	return v.f1.Process(v.noise.Next()) * v.amp.Next()
}

// Crash and ride: four squares, each detuned upward by a random amount up to
// 500 Hz, through a highpass. The crash sits at the pitch behind a 2 kHz
// highpass and rings 3 s; the ride doubles the pitch, uses 5 kHz and rings
// 1.5 s.
func cymbal(v *voice, b *Bank) {
	base, hp, d := v.pitch(), 2000.0, 3.0
	if v.inst == session.Ride {
		base, hp, d = 2*v.pitch(), 5000, 1.5
	}
	for i := range v.osc {
		v.ratio[i] = base + b.rng.Float64()*500
	}
	v.f1.Init(dsp.Highpass, v.sr, hp, 0.7, 0)
	v.life = v.percussive(&v.amp, v.vol*0.2, 0.005, d)
	v.next = renderCymbal
}

func renderCymbal(v *voice) float64 {
	var s float64
	for i := range v.osc {
		s += v.osc[i].Next(dsp.Square, v.ratio[i], v.sr)
	}
	return v.f1.Process(s/4) * v.amp.Next()
}

// FM bass: sine carrier at the pitch, frequency modulated by a square at
// twice the pitch with 500 Hz deviation, through a Q 5 lowpass.
func fmBass(v *voice, b *Bank) {
	f := v.pitch()
	d := v.decay()
	v.ratio[0], v.ratio[1] = f, 2*f
	v.f1.Init(dsp.Lowpass, v.sr, v.cutoff(), 5, 0)
	v.life = v.percussive(&v.amp, v.vol*0.5, 0.02, d)
	v.next = renderFMBass
}

func renderFMBass(v *voice) float64 {
	m := v.osc[1].Next(dsp.Square, v.ratio[1], v.sr) * 500
	s := v.osc[0].Next(dsp.Sine, v.ratio[0]+m, v.sr)
	return v.f1.Process(s) * v.amp.Next()
}

// Lead square: two squares 1% apart through a lowpass. The PWM lead is the
// same voice a further 1% up. Raising its tone above the factory value
// sweeps both pulse widths with a 4 Hz LFO.
func lead(v *voice, b *Bank) {
	f := v.pitch()
	if v.inst == session.LeadPWM {
		f *= 1.01
		v.lfo = lfo.New(lfo.Sine, 4, 0.35*v.toneExcess())
	}
	v.ratio[0], v.ratio[1] = f, f*1.01
	v.f1.Init(dsp.Lowpass, v.sr, v.cutoff(), 1, 0)
	v.life = v.percussive(&v.amp, v.vol*0.5, 0.002, v.decay())
	v.next = renderLead
}

func renderLead(v *voice) float64 {
	var s float64
	if v.lfo.Active() {
		w := 0.5 + v.lfo.Sample(v.sr)
		s = v.osc[0].NextPulse(v.ratio[0], v.sr, w) + v.osc[1].NextPulse(v.ratio[1], v.sr, 1-w)
	} else {
		s = v.osc[0].Next(dsp.Square, v.ratio[0], v.sr) + v.osc[1].Next(dsp.Square, v.ratio[1], v.sr)
	}
	return v.f1.Process(s*0.5) * v.amp.Next()
}

// Pad saw: two saws 0.5% apart, fading in over 0.5 s, through a lowpass
// opening by 500 Hz over the first second. The choir pad is the same voice
// heard through a 600 Hz formant bandpass.
func padSaw(v *voice, b *Bank) {
	f := v.pitch()
	c := v.cutoff()
	v.ratio[0], v.ratio[1] = f, f*1.005
	v.cut = dsp.NewParam(c)
	v.cut.LinearTo(c+500, v.frames(1))
	v.f1.Init(dsp.Lowpass, v.sr, c, 1, 0)
	if v.inst == session.PadChoir {
		v.f2.Init(dsp.Bandpass, v.sr, 600, 2, 0)
		v.mix = 1
	}
	v.life = v.swell(v.vol*0.4, 0.5, v.decay())
	v.next = renderPadSaw
}

func renderPadSaw(v *voice) float64 {
	v.sweep(&v.f1)
	s := v.osc[0].Next(dsp.Saw, v.ratio[0], v.sr) + v.osc[1].Next(dsp.Saw, v.ratio[1], v.sr)
	s = v.f1.Process(s*0.5) * v.amp.Next()
	if v.mix > 0 {
		s = v.f2.Process(s) * 2
	}
	return s
}

// Pad ethereal: a sine at the pitch, a triangle a fifth above, each detuned
// 10 cents apart, and a sine an octave below, fading in over 1 s, through a
// gentle lowpass.
func padEthereal(v *voice, b *Bank) {
	f := v.pitch()
	cents := math.Pow(2, 10.0/1200)
	v.ratio[0], v.ratio[1], v.ratio[2] = f*cents, f*1.5/cents, f/2
	v.f1.Init(dsp.Lowpass, v.sr, v.cutoff(), 0.5, 0)
	v.life = v.swell(v.vol*0.5, 1, v.decay())
	v.next = renderPadEthereal
}

func renderPadEthereal(v *voice) float64 {
	s := v.osc[0].Next(dsp.Sine, v.ratio[0], v.sr) +
		v.osc[1].Next(dsp.Triangle, v.ratio[1], v.sr) +
		v.osc[2].Next(dsp.Sine, v.ratio[2], v.sr)
	return v.f1.Process(s/3) * v.amp.Next()
}

// Pluck sine and arp pluck: a plain decaying sine.
func pluckSine(v *voice, b *Bank) {
	v.ratio[0] = v.pitch()
	v.life = v.percussive(&v.amp, v.vol*0.8, 0.001/0.8, v.decay())
	v.next = renderPluckSine
}

func renderPluckSine(v *voice) float64 {
	return v.osc[0].Next(dsp.Sine, v.ratio[0], v.sr) * v.amp.Next()
}

// Acid: saw when tone is above one half, square otherwise, through a Q 15
// lowpass. The cutoff jumps by up to 2 kHz (scaled by tone) in 50 ms and
// falls back by the end of the decay.
func acid(v *voice, b *Bank) {
	d := v.decay()
	tone := v.tone()
	v.ratio[0] = v.pitch()
	v.wave = dsp.Square
	if tone > 0.5 {
		v.wave = dsp.Saw
	}
	if tone == 0 {
		tone = 0.5
	}
	c := v.cutoff()
	peak := v.frames(0.05)
	v.cut = dsp.NewParam(c)
	v.cut.LinearTo(c+2000*tone, peak)
	v.cut.ExpTo(c, max(v.frames(d), peak+1))
	v.f1.Init(dsp.Lowpass, v.sr, c, 15, 0)
	v.life = v.percussive(&v.amp, v.vol*0.6, 0.001/0.6, d)
	v.next = renderAcid
}

func renderAcid(v *voice) float64 {
	v.sweep(&v.f1)
	s := v.osc[0].Next(v.wave, v.ratio[0], v.sr)
	return v.f1.Process(s) * v.amp.Next()
}

// Sub 808: sine gliding down to 80% of the pitch over 0.5 s, shaped by a
// hard saturation curve.
func sub808(v *voice, b *Bank) {
	f := v.pitch()
	v.freq = dsp.NewParam(f)
	v.freq.ExpTo(f*0.8, v.frames(0.5))
	v.curve = b.satCurve
	v.life = v.percussive(&v.amp, v.vol*0.9, 0.001/0.9, v.decay())
	v.next = renderSub808
}

func renderSub808(v *voice) float64 {
	s := v.osc[0].Next(dsp.Sine, v.freq.Next(), v.sr)
	return v.curve.Apply(s) * v.amp.Next()
}

// Glitch: the noise table read at a random rate between 0.5 and 1.5.
// Always 0.2 s. Tone above the factory value chops it with a
// sample-and-hold LFO.
func glitch(v *voice, b *Bank) {
	v.noise = dsp.NewNoise(b.rng.Intn(1<<17), 0.5+b.rng.Float64())
	v.mix = v.toneExcess() * 0.5
	v.lfo = lfo.New(lfo.SampleHold, 40, v.mix)
	v.lfo.Seed(b.rng.Uint32(), 0)
	v.life = v.percussive(&v.amp, v.vol*0.8, 0.001/0.8, 0.2)
	v.next = renderGlitch
}

func renderGlitch(v *voice) float64 {
	g := 1 - v.mix - v.lfo.Sample(v.sr)
	return v.noise.Next() * g * v.amp.Next()
}
