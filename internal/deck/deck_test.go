package deck

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/lyraflex/shadowcore/internal/dsp"
)

const testRate = 1000

// rampBuffer holds seconds of audio whose value is its own position in
// seconds, scaled down.
func rampBuffer(seconds float64) *Buffer {
	n := int(seconds * testRate)
	b := &Buffer{SampleRate: testRate, L: make([]float32, n), R: make([]float32, n)}
	for i := range b.L {
		b.L[i] = float32(i) / float32(n)
		b.R[i] = -b.L[i]
	}
	return b
}

func render(d *Deck, seconds float64) {
	buf := make([]float32, 2*int(math.Round(seconds*testRate)))
	d.Render(buf)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestSlipReleaseResumesOnTimeline(t *testing.T) {
	cases := []struct {
		name       string
		rate       float64
		engageAt   float64
		held       float64
		interval   float64
		wantWindow [2]float64
	}{
		{"quarter", 1, 2.3, 1.7, 4, [2]float64{2.25, 2.75}},
		{"sixteenth", 1, 5.01, 0.4, 1, [2]float64{5, 5.125}},
		{"wraps", 1, 9, 3, 8, [2]float64{9, 10}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := New(testRate)
			d.Load(rampBuffer(10))
			d.SetRate(c.rate)
			d.Play()
			render(d, c.engageAt)
			orig := d.Position()
			if !d.EngageRoll(c.interval, 120, c.engageAt) {
				t.Fatalf("roll did not engage")
			}
			s, e := d.RollWindow()
			if !near(s, c.wantWindow[0]) || !near(e, c.wantWindow[1]) {
				t.Fatalf("window %v..%v, want %v", s, e, c.wantWindow)
			}
			for i := 0; i < int(c.held*10); i++ {
				render(d, 0.1)
				if p := d.Position(); p < s-1e-9 || p >= e+1e-9 {
					t.Fatalf("playhead %v left window", p)
				}
			}
			d.ReleaseRoll(c.engageAt + c.held)
			want := math.Mod(orig+c.held*c.rate, 10)
			if !near(d.Position(), want) {
				t.Fatalf("resumed at %v, want %v", d.Position(), want)
			}
			if !d.Playing() || d.Rolling() {
				t.Fatalf("playing=%v rolling=%v after release", d.Playing(), d.Rolling())
			}
		})
	}
}

func TestSlipUsesPlaybackRate(t *testing.T) {
	d := New(testRate)
	d.Load(rampBuffer(10))
	d.SetRate(1.5)
	d.Play()
	render(d, 1)
	orig := d.Position()
	d.EngageRoll(2, 120, 1)
	render(d, 2)
	d.ReleaseRoll(3)
	if want := orig + 3; !near(d.Position(), want) {
		t.Fatalf("resumed at %v, want %v", d.Position(), want)
	}
}

func TestReengageKeepsAnchor(t *testing.T) {
	d := New(testRate)
	d.Load(rampBuffer(10))
	d.Play()
	render(d, 1.3)
	d.EngageRoll(4, 120, 1.3)
	render(d, 0.2)
	d.EngageRoll(2, 120, 1.5)
	s, e := d.RollWindow()
	if !near(s, 1.25) || !near(e, 1.5) {
		t.Fatalf("window %v..%v", s, e)
	}
	d.ReleaseRoll(2)
	if !near(d.Position(), 2) {
		t.Fatalf("slip measured from second engagement: %v", d.Position())
	}
}

func TestRollWithoutBufferIsNoop(t *testing.T) {
	d := New(testRate)
	if d.EngageRoll(4, 120, 0) {
		t.Fatalf("roll engaged without a buffer")
	}
	d.ReleaseRoll(1)
	d.Play()
	d.Seek(3)
	d.SetStem(Bass, 0.5)
	if d.Playing() || d.Position() != 0 {
		t.Fatalf("empty deck playing=%v pos=%v", d.Playing(), d.Position())
	}
	buf := []float32{1, 1, 1, 1}
	d.Render(buf)
	for _, s := range buf {
		if s != 0 {
			t.Fatalf("empty deck rendered %v", buf)
		}
	}

	d.Load(rampBuffer(1))
	if d.EngageRoll(4, 120, 0) {
		t.Fatalf("roll engaged while stopped")
	}
}

func TestPauseKeepsPositionStopRewinds(t *testing.T) {
	d := New(testRate)
	d.Load(rampBuffer(5))
	d.Toggle()
	render(d, 1.5)
	d.Toggle()
	if d.Playing() || !near(d.Position(), 1.5) {
		t.Fatalf("pause: playing=%v pos=%v", d.Playing(), d.Position())
	}
	render(d, 1)
	if !near(d.Position(), 1.5) {
		t.Fatalf("paused deck moved to %v", d.Position())
	}
	d.Play()
	render(d, 0.5)
	if !near(d.Position(), 2) {
		t.Fatalf("resume: pos=%v", d.Position())
	}
	d.Stop()
	if d.Playing() || d.Position() != 0 {
		t.Fatalf("stop: playing=%v pos=%v", d.Playing(), d.Position())
	}
}

func TestNaturalEndAndLoop(t *testing.T) {
	d := New(testRate)
	d.Load(rampBuffer(0.1))
	d.Play()
	render(d, 0.2)
	if d.Playing() || d.Position() != 0 {
		t.Fatalf("after end: playing=%v pos=%v", d.Playing(), d.Position())
	}
	if !d.Ended() || d.Ended() {
		t.Fatalf("Ended should report once")
	}

	d.SetLoop(true)
	d.Play()
	render(d, 0.25)
	if !d.Playing() || !near(d.Position(), 0.05) {
		t.Fatalf("loop: playing=%v pos=%v", d.Playing(), d.Position())
	}
}

func TestStemMuteRestoresLevel(t *testing.T) {
	d := New(testRate)
	d.SetStem(Vocals, 0.3)
	d.MuteStem(Vocals, true)
	if g, l := d.StemGain(Vocals); g != 0 || l != 0.3 {
		t.Fatalf("muted gain=%v level=%v", g, l)
	}
	d.SetStem(Vocals, 0.6)
	if g, _ := d.StemGain(Vocals); g != 0 {
		t.Fatalf("level change unmuted the stem: %v", g)
	}
	d.MuteStem(Vocals, false)
	if g, l := d.StemGain(Vocals); g != 0.6 || l != 0.6 {
		t.Fatalf("unmuted gain=%v level=%v", g, l)
	}
	if g, _ := d.StemGain(Bass); g != 1 {
		t.Fatalf("other stems touched: %v", g)
	}
}

func TestMutingAllStemsSilences(t *testing.T) {
	d := New(testRate)
	b := rampBuffer(2)
	for i := range b.L {
		b.L[i], b.R[i] = 0.5, 0.5
	}
	d.Load(b)
	d.Play()
	for s := Stem(0); s < NumStems; s++ {
		d.MuteStem(s, true)
	}
	render(d, 0.5)
	buf := make([]float32, 64)
	d.Render(buf)
	for _, v := range buf {
		if math.Abs(float64(v)) > 1e-9 {
			t.Fatalf("muted deck rendered %v", v)
		}
	}
}

func TestTapeStopHaltsPlayhead(t *testing.T) {
	d := New(testRate)
	d.Load(rampBuffer(10))
	d.Play()
	d.SetTapeStop(true)
	render(d, 1.2)
	p := d.Position()
	if p > 0.6 || p < 0.4 {
		t.Fatalf("tape stop travelled %v, want about 0.5", p)
	}
	render(d, 1)
	if d.Position() != p {
		t.Fatalf("playhead moved while stopped")
	}
	d.SetTapeStop(false)
	render(d, 1)
	if d.Position() <= p {
		t.Fatalf("playhead did not restart")
	}
}

func TestDetuneScalesRate(t *testing.T) {
	d := New(testRate)
	d.SetRate(2)
	d.SetDetune(-1200)
	if !near(d.Rate(), 1) {
		t.Fatalf("Rate = %v", d.Rate())
	}
	d.SetRate(0)
	d.SetRate(-1)
	if !near(d.Rate(), 1) {
		t.Fatalf("invalid rate accepted: %v", d.Rate())
	}
}

func TestVibeFilterMapping(t *testing.T) {
	cases := []struct {
		v    float64
		kind dsp.FilterKind
		freq float64
	}{
		{0, dsp.Lowpass, 22000},
		{0.1, dsp.Lowpass, 22000},
		{-1, dsp.Lowpass, 200},
		{-0.5, dsp.Lowpass, 2000},
		{0.5, dsp.Highpass, 2510},
		{1, dsp.Highpass, 10000},
	}
	for _, c := range cases {
		k, f := VibeFilter(c.v)
		if k != c.kind || math.Abs(f-c.freq) > 1e-6 {
			t.Fatalf("VibeFilter(%v) = %v, %v; want %v, %v", c.v, k, f, c.kind, c.freq)
		}
	}
}

func TestStemNames(t *testing.T) {
	for s := Stem(0); s < NumStems; s++ {
		got, ok := ParseStem(s.String())
		if !ok || got != s {
			t.Fatalf("ParseStem(%q) = %v, %v", s, got, ok)
		}
	}
	if _, ok := ParseStem("kazoo"); ok {
		t.Fatalf("unknown stem parsed")
	}
}

func writeWAV(t *testing.T, rate int, frames [][2]int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loop.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := gowav.NewEncoder(f, rate, 16, 2, 1)
	data := make([]int, 0, 2*len(frames))
	for _, fr := range frames {
		data = append(data, fr[0], fr[1])
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodeWAV(t *testing.T) {
	frames := make([][2]int, 4410)
	for i := range frames {
		frames[i] = [2]int{16384, -16384}
	}
	path := writeWAV(t, 44100, frames)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	b, err := Decode(f, 44100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b.Frames() != len(frames) || !near(b.Duration(), 0.1) {
		t.Fatalf("frames=%d duration=%v", b.Frames(), b.Duration())
	}
	if math.Abs(float64(b.L[100])-0.5) > 1e-3 || math.Abs(float64(b.R[100])+0.5) > 1e-3 {
		t.Fatalf("sample = %v, %v", b.L[100], b.R[100])
	}
}

func TestDecodeFailureLeavesDeckEmpty(t *testing.T) {
	d := New(testRate)
	for _, in := range [][]byte{nil, []byte("definitely not audio"), []byte("RIFF\x00\x00\x00\x00WAVEjunk")} {
		b, err := Decode(bytes.NewReader(in), testRate)
		if !errors.Is(err, ErrDecode) || b != nil {
			t.Fatalf("Decode(%q) = %v, %v", in, b, err)
		}
	}
	if d.Loaded() {
		t.Fatalf("deck loaded after failed decode")
	}
	d.Load(&Buffer{SampleRate: testRate})
	if d.Loaded() {
		t.Fatalf("empty buffer loaded")
	}
}
