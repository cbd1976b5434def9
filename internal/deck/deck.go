// Package deck is the sample deck: one decoded buffer played at a variable
// rate, split into four frequency-band stems, equalised and filtered before
// it joins the master bus. It also carries the deck half of the loop roll.
//
// A Deck is not safe for concurrent use. The engine drives it from the
// render goroutine.
package deck

import (
	"math"

	"github.com/lyraflex/shadowcore/internal/dsp"
	"github.com/lyraflex/shadowcore/internal/effects"
)

// Stem names one band of the crossover.
type Stem int

const (
	Bass Stem = iota
	Vocals
	Other
	Drums
	NumStems
)

var stemNames = [NumStems]string{"bass", "vocals", "other", "drums"}

func (s Stem) String() string {
	if s < 0 || s >= NumStems {
		return "unknown"
	}
	return stemNames[s]
}

// ParseStem maps a stem name to its Stem.
func ParseStem(name string) (Stem, bool) {
	for i, n := range stemNames {
		if n == name {
			return Stem(i), true
		}
	}
	return 0, false
}

// EQBand names one band of the deck equaliser.
type EQBand int

const (
	EQLow EQBand = iota
	EQMid
	EQHigh
)

const (
	DefaultVolume = 0.8

	tapeStopSeconds  = 1
	tapeStartSeconds = 0.25
)

type stem struct {
	f1, f2 dsp.Biquad
	chain  int // number of filters in series
	gain   dsp.Smoother
	level  float64
	muted  bool
}

type roll struct {
	engaged   bool
	engagedAt float64
	original  float64 // seconds, unsnapped
	start     float64 // frames
	end       float64 // frames
}

type Deck struct {
	sr  int
	buf *Buffer

	playing bool
	pos     float64 // frames
	loop    bool
	ended   bool

	rate   float64
	detune float64
	speed  dsp.Smoother
	tape   dsp.Smoother
	taped  bool
	volume dsp.Smoother

	stems [NumStems]stem
	eq    *effects.EQ3Band
	vibe  *effects.Filter
	vibeK dsp.FilterKind
	vibeV float64

	roll roll
}

func New(sampleRate int) *Deck {
	ramp := dsp.SmoothingFrames(sampleRate, 100)
	d := &Deck{
		sr:     sampleRate,
		rate:   1,
		speed:  dsp.NewSmoother(1, ramp),
		tape:   dsp.NewSmoother(1, ramp),
		volume: dsp.NewSmoother(DefaultVolume, ramp),
		eq:     effects.NewEQ3Band(sampleRate, 0, 0, 0),
		vibe:   effects.NewFilter(dsp.Lowpass, sampleRate, 22000, 1, 0, 100),
	}
	sr := float64(sampleRate)
	s := &d.stems
	s[Bass].f1.Init(dsp.Lowpass, sr, 180, 0.8, 0)
	s[Vocals].f1.Init(dsp.Bandpass, sr, 1200, 0.8, 0)
	s[Other].f1.Init(dsp.Highpass, sr, 3500, 0.7, 0)
	s[Drums].f1.Init(dsp.Notch, sr, 1200, 1.5, 0)
	s[Drums].f2.Init(dsp.Lowshelf, sr, 200, 1, 3)
	for i := range s {
		s[i].chain = 1
		s[i].gain = dsp.NewSmoother(1, ramp)
		s[i].level = 1
	}
	s[Drums].chain = 2
	return d
}

// Load replaces the buffer and rewinds. A nil buffer unloads.
func (d *Deck) Load(b *Buffer) {
	d.Stop()
	if b != nil && b.Frames() == 0 {
		b = nil
	}
	d.buf = b
}

func (d *Deck) Unload() { d.Load(nil) }

func (d *Deck) Loaded() bool { return d.buf != nil }

func (d *Deck) Buffer() *Buffer { return d.buf }

func (d *Deck) Playing() bool { return d.playing }

// Duration of the loaded buffer in seconds.
func (d *Deck) Duration() float64 {
	if d.buf == nil {
		return 0
	}
	return d.buf.Duration()
}

// Position is the playhead in seconds.
func (d *Deck) Position() float64 { return d.pos / float64(d.sr) }

// Play starts from the current position.
func (d *Deck) Play() {
	if d.buf == nil {
		return
	}
	if d.pos >= float64(d.buf.Frames()) {
		d.pos = 0
	}
	d.playing = true
}

// Pause keeps the position. A roll in progress ends where it is.
func (d *Deck) Pause() {
	d.playing = false
	d.roll = roll{}
}

// Stop rewinds to the start and ends any roll.
func (d *Deck) Stop() {
	d.playing = false
	d.pos = 0
	d.roll = roll{}
}

func (d *Deck) Toggle() {
	if d.playing {
		d.Pause()
	} else {
		d.Play()
	}
}

// Seek moves the playhead to seconds, wrapped into the buffer.
func (d *Deck) Seek(seconds float64) {
	if d.buf == nil {
		return
	}
	d.pos = wrap(seconds*float64(d.sr), float64(d.buf.Frames()))
}

// SetRate sets the playback rate. Non-positive rates are ignored.
func (d *Deck) SetRate(rate float64) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return
	}
	d.rate = rate
	d.speed.SetTarget(d.Rate())
}

// SetDetune shifts playback speed by cents.
func (d *Deck) SetDetune(cents float64) {
	if math.IsNaN(cents) || math.IsInf(cents, 0) {
		return
	}
	d.detune = cents
	d.speed.SetTarget(d.Rate())
}

// Rate is the effective playback rate: rate scaled by detune.
func (d *Deck) Rate() float64 { return d.rate * math.Pow(2, d.detune/1200) }

func (d *Deck) SetVolume(v float64) { d.volume.SetTarget(math.Max(0, v)) }

func (d *Deck) Volume() float64 { return d.volume.Target() }

// SetLoop makes playback wrap at the end of the buffer.
func (d *Deck) SetLoop(on bool) { d.loop = on }

func (d *Deck) Loop() bool { return d.loop }

// SetStem sets a stem level in [0, 1]. A muted stem remembers the level and
// stays silent.
func (d *Deck) SetStem(s Stem, level float64) {
	if s < 0 || s >= NumStems {
		return
	}
	st := &d.stems[s]
	st.level = math.Max(0, math.Min(level, 1))
	if !st.muted {
		st.gain.SetTarget(st.level)
	}
}

// MuteStem silences or restores a stem.
func (d *Deck) MuteStem(s Stem, muted bool) {
	if s < 0 || s >= NumStems {
		return
	}
	st := &d.stems[s]
	st.muted = muted
	if muted {
		st.gain.SetTarget(0)
	} else {
		st.gain.SetTarget(st.level)
	}
}

// StemGain returns the target gain of a stem and its stored level.
func (d *Deck) StemGain(s Stem) (gain, level float64) {
	if s < 0 || s >= NumStems {
		return 0, 0
	}
	return d.stems[s].gain.Target(), d.stems[s].level
}

// SetEQ sets one equaliser band gain in dB.
func (d *Deck) SetEQ(band EQBand, db float64) {
	low, mid, high := d.eq.Gains()
	switch band {
	case EQLow:
		low = db
	case EQMid:
		mid = db
	case EQHigh:
		high = db
	default:
		return
	}
	d.eq.SetGains(low, mid, high)
}

// VibeFilter maps the deck filter control in [-1, 1] to a filter kind and
// cutoff. Around zero the filter is a fully open lowpass.
func VibeFilter(v float64) (dsp.FilterKind, float64) {
	switch {
	case v < -0.1:
		return dsp.Lowpass, math.Max(100, 20000*math.Pow(0.01, -v))
	case v > 0.1:
		return dsp.Highpass, math.Min(10000, 10+10000*v*v)
	}
	return dsp.Lowpass, 22000
}

// SetVibe sets the deck filter control.
func (d *Deck) SetVibe(v float64) {
	d.vibeV = v
	kind, freq := VibeFilter(v)
	if kind != d.vibeK {
		d.vibe = effects.NewFilter(kind, d.sr, d.vibe.Frequency(), 1, 0, 100)
		d.vibeK = kind
	}
	d.vibe.SetFrequency(freq)
}

func (d *Deck) Vibe() float64 { return d.vibeV }

// SetTapeStop glides playback speed down to zero over one second, or back
// up over a quarter second.
func (d *Deck) SetTapeStop(on bool) {
	if on == d.taped {
		return
	}
	d.taped = on
	if on {
		d.tape.SetTargetOver(0, int(tapeStopSeconds*float64(d.sr)))
	} else {
		d.tape.SetTargetOver(1, int(tapeStartSeconds*float64(d.sr)))
	}
}

func (d *Deck) TapeStopped() bool { return d.taped }

// Ended reports, once, that playback ran off the end of the buffer.
func (d *Deck) Ended() bool {
	e := d.ended
	d.ended = false
	return e
}

// EngageRoll loops a window of interval sixteenth notes at bpm. On the first
// engagement the window starts at the grid line at or before the playhead and
// the true position and time now (seconds) are remembered. Engaging again
// resizes the window and keeps its start. It reports whether the deck took
// part: without a buffer or while stopped it does nothing.
func (d *Deck) EngageRoll(interval, bpm, now float64) bool {
	if d.buf == nil || !d.playing {
		return false
	}
	if bpm <= 0 || math.IsNaN(bpm) {
		bpm = 120
	}
	if interval <= 0 || math.IsNaN(interval) {
		interval = 1
	}
	sr := float64(d.sr)
	frames := float64(d.buf.Frames())
	grid := 60 / bpm / 4
	if !d.roll.engaged {
		cur := wrap(d.pos, frames) / sr
		d.roll = roll{
			engaged:   true,
			engagedAt: now,
			original:  cur,
			start:     math.Floor(cur/grid) * grid * sr,
		}
	}
	d.roll.end = math.Min(frames, d.roll.start+grid*interval*sr)
	return true
}

// ReleaseRoll ends the roll and resumes where playback would have been had
// the roll never happened: the original position plus the time held, at the
// current rate, wrapped into the buffer.
func (d *Deck) ReleaseRoll(now float64) {
	if !d.roll.engaged {
		return
	}
	held := math.Max(0, now-d.roll.engagedAt)
	target := math.Mod(d.roll.original+held*d.Rate(), d.Duration())
	d.roll = roll{}
	d.Seek(target)
	d.Play()
}

func (d *Deck) Rolling() bool { return d.roll.engaged }

// RollWindow returns the looped window in seconds.
func (d *Deck) RollWindow() (start, end float64) {
	sr := float64(d.sr)
	return d.roll.start / sr, d.roll.end / sr
}

// Render overwrites dst (interleaved stereo) with the deck output.
func (d *Deck) Render(dst []float32) {
	if d.buf == nil {
		clear(dst)
		return
	}
	frames := float64(d.buf.Frames())
	for i := 0; i+1 < len(dst); i += 2 {
		var l, r float64
		step := d.speed.Next() * d.tape.Next()
		if d.playing {
			l, r = d.read(d.pos)
			d.advance(step, frames)
		}
		var sl, sr float64
		for s := range d.stems {
			st := &d.stems[s]
			a, b := st.f1.ProcessStereo(l, r)
			if st.chain == 2 {
				a, b = st.f2.ProcessStereo(a, b)
			}
			g := st.gain.Next()
			sl += a * g
			sr += b * g
		}
		v := d.volume.Next()
		ol, or := d.eq.Process(float32(sl*v), float32(sr*v))
		dst[i], dst[i+1] = d.vibe.Process(ol, or)
	}
}

func (d *Deck) read(pos float64) (float64, float64) {
	b := d.buf
	n := len(b.L)
	i := int(pos)
	if i >= n {
		i = n - 1
	}
	j := i + 1
	if j >= n {
		j = i
		if d.loop || d.roll.engaged {
			j = 0
		}
	}
	f := float32(pos - float64(i))
	l := b.L[i] + (b.L[j]-b.L[i])*f
	r := b.R[i] + (b.R[j]-b.R[i])*f
	return float64(l), float64(r)
}

func (d *Deck) advance(step, frames float64) {
	d.pos += step
	switch {
	case d.roll.engaged && d.roll.end > d.roll.start:
		if d.pos >= d.roll.end || d.pos < d.roll.start {
			d.pos = d.roll.start + wrap(d.pos-d.roll.start, d.roll.end-d.roll.start)
		}
	case d.pos < frames:
	case d.loop:
		d.pos = wrap(d.pos, frames)
	default:
		d.playing = false
		d.pos = 0
		d.ended = true
	}
}

func wrap(x, n float64) float64 {
	if n <= 0 {
		return 0
	}
	x = math.Mod(x, n)
	if x < 0 {
		x += n
	}
	return x
}
