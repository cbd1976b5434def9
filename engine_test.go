package shadowcore

import (
	"bytes"
	"errors"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/lyraflex/shadowcore/internal/deck"
	"github.com/lyraflex/shadowcore/internal/session"
)

// testRate makes one sixteenth at 120 BPM exactly 1000 frames.
const (
	testRate = 8000
	stepLen  = 1000
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithRandomSource(rand.New(rand.NewSource(1))),
		WithLogger(log.New(io.Discard, "", 0)),
	}
	e, err := New(testRate, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func gridTrack(inst session.Instrument, grid string) session.Track {
	tr := session.NewTrack(inst, len(grid))
	for i := range grid {
		tr.Steps[i].Active = grid[i] == 'x'
	}
	return tr
}

// process renders frames in blocks of the given size.
func process(e *Engine, frames, block int) []float32 {
	out := make([]float32, 2*frames)
	for off := 0; off < frames; off += block {
		end := min(off+block, frames)
		e.Process(out[2*off : 2*end])
	}
	return out
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func stepEvents(evs []Event) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Kind == EventStep {
			out = append(out, ev)
		}
	}
	return out
}

func TestFourOnTheFloor(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.LoadPattern("A", []session.Track{gridTrack(session.Kick, "x...x...x...x...")})
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	process(e, 16*stepLen, 333)

	steps := stepEvents(drain(events))
	if len(steps) != 16 {
		t.Fatalf("got %d ticks, want 16", len(steps))
	}
	var fired []int
	for i, ev := range steps {
		if ev.Tick != i || ev.Step != i {
			t.Fatalf("tick %d carried tick=%d step=%d", i, ev.Tick, ev.Step)
		}
		if ev.Fired[0] {
			fired = append(fired, ev.Step)
		}
	}
	want := []int{0, 4, 8, 12}
	if len(fired) != len(want) {
		t.Fatalf("kick fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("kick fired at %v, want %v", fired, want)
		}
	}
}

func TestSoloWins(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	a := gridTrack(session.Kick, "x...")
	a.Solo = true
	b := gridTrack(session.Snare, "x...")
	e.LoadPattern("A", []session.Track{a, b})
	e.Play()
	process(e, stepLen/2, 512)

	steps := stepEvents(drain(events))
	if len(steps) != 1 {
		t.Fatalf("got %d ticks, want 1", len(steps))
	}
	if !steps[0].Fired[0] || steps[0].Fired[1] {
		t.Fatalf("fired = %v, want only the soloed track", steps[0].Fired)
	}
}

func TestRenderIndependentOfBlockSize(t *testing.T) {
	render := func(block int) []float32 {
		e := newTestEngine(t)
		NewStudio(e, session.Default(), WithEditRandom(rand.New(rand.NewSource(2))))
		e.Play()
		return process(e, 2*testRate, block)
	}
	a, b := render(512), render(97)
	peak := float32(0)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
		peak = max(peak, float32(math.Abs(float64(a[i]))))
	}
	if peak == 0 {
		t.Fatal("render is silent")
	}
}

func TestQueuedPatternWaitsForBar(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.LoadPattern("A", []session.Track{gridTrack(session.Kick, "xxxxxxxxxxxxxxxx")})
	e.Play()
	process(e, 5*stepLen-10, 256)
	e.QueuePattern("B", []session.Track{gridTrack(session.Snare, "x...............")})
	process(e, 15*stepLen, 256)

	var changed []Event
	for _, ev := range drain(events) {
		switch ev.Kind {
		case EventPatternChanged:
			changed = append(changed, ev)
		case EventStep:
			want := "A"
			if ev.Tick >= 16 {
				want = "B"
			}
			if ev.PatternID != want {
				t.Fatalf("tick %d played %q, want %q", ev.Tick, ev.PatternID, want)
			}
			if ev.Tick == 16 && !ev.Fired[0] {
				t.Fatalf("first step of the new pattern did not fire")
			}
		}
	}
	if len(changed) != 1 || changed[0].Tick != 16 || changed[0].PatternID != "B" {
		t.Fatalf("changeover events = %+v, want one at tick 16", changed)
	}
}

func TestStopResetsAndSilences(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.LoadPattern("A", []session.Track{gridTrack(session.Kick, "x.x.x.x.x.x.x.x.")})
	e.Play()
	e.EngageStutter(2)
	process(e, 5*stepLen, 512)
	e.Stop()
	e.Stop()
	e.Pause()
	out := process(e, stepLen, 512)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d = %v after Stop, want silence", i, s)
		}
	}
	if e.Playing() || e.Step() != 0 || e.Voices() != 0 || e.Stuttering() {
		t.Fatalf("after Stop: playing=%v step=%d voices=%d stutter=%v", e.Playing(), e.Step(), e.Voices(), e.Stuttering())
	}
	drain(events)

	e.Play()
	process(e, stepLen/2, 512)
	steps := stepEvents(drain(events))
	if len(steps) != 1 || steps[0].Tick != 0 || steps[0].Step != 0 {
		t.Fatalf("first tick after restart = %+v, want tick 0 step 0", steps)
	}
}

func TestPauseKeepsPosition(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.LoadPattern("A", []session.Track{gridTrack(session.HihatClosed, "xxxxxxxxxxxxxxxx")})
	e.Play()
	process(e, 4*stepLen+500, 512)
	e.Pause()
	e.Pause()
	out := process(e, 3*stepLen, 512)
	for _, s := range out {
		if s != 0 {
			t.Fatal("paused engine produced sound")
		}
	}
	e.Play()
	process(e, stepLen, 512)

	steps := stepEvents(drain(events))
	if len(steps) != 6 {
		t.Fatalf("got %d ticks, want 6", len(steps))
	}
	if last := steps[5]; last.Tick != 5 || last.Step != 5 {
		t.Fatalf("tick after resume = %d step %d, want 5", last.Tick, last.Step)
	}
}

func TestStutterRepeatsAndReleases(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.LoadPattern("A", []session.Track{gridTrack(session.Kick, "xxxxxxxxxxxxxxxx")})
	e.Play()
	process(e, 4*stepLen+500, 512)
	e.EngageStutter(2)
	process(e, 4*stepLen, 512)
	e.ReleaseStutter()
	process(e, stepLen, 512)

	var got []int
	for _, ev := range stepEvents(drain(events)) {
		got = append(got, ev.Step)
	}
	want := []int{0, 1, 2, 3, 4, 4, 5, 4, 5, 9}
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("steps = %v, want %v", got, want)
		}
	}
}

type noteRecorder struct {
	mu    sync.Mutex
	notes []session.Instrument
	steps []int
}

func (r *noteRecorder) Note(inst session.Instrument, _ float64) {
	r.mu.Lock()
	r.notes = append(r.notes, inst)
	r.mu.Unlock()
}

func (r *noteRecorder) Step(step int, _ []bool) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

func TestSinksAndTap(t *testing.T) {
	rec := &noteRecorder{}
	var tapped int
	e := newTestEngine(t,
		WithNoteSink(rec),
		WithStepSink(rec),
		WithSampleTap(func(buf []float32) { tapped += len(buf) / 2 }))
	e.LoadPattern("A", []session.Track{
		gridTrack(session.Kick, "x...x...x...x..."),
		gridTrack(session.PadSaw, "x..............."),
	})
	e.Play()
	process(e, 16*stepLen, 400)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	if tapped != 16*stepLen {
		t.Fatalf("tap saw %d frames, want %d", tapped, 16*stepLen)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.steps) != 16 {
		t.Fatalf("step sink got %d steps, want 16", len(rec.steps))
	}
	kicks := 0
	for _, n := range rec.notes {
		if n == session.Kick {
			kicks++
		}
	}
	if kicks != 4 || len(rec.notes) != 5 {
		t.Fatalf("note sink got %v, want 4 kicks and one pad", rec.notes)
	}
}

func TestMutedTrackNeverFires(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	m := gridTrack(session.Kick, "xxxxxxxxxxxxxxxx")
	m.Mute, m.Solo = true, true
	e.LoadPattern("A", []session.Track{m, gridTrack(session.Snare, "x.x.x.x.x.x.x.x.")})
	e.Play()
	process(e, 16*stepLen, 512)
	for _, ev := range stepEvents(drain(events)) {
		if ev.Fired[0] || ev.Fired[1] {
			t.Fatalf("tick %d fired %v; muted soloed track must silence both", ev.Tick, ev.Fired)
		}
	}
}

func writeTestWAV(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	n := int(seconds * testRate)
	data := make([]int, 2*n)
	for i := 0; i < n; i++ {
		v := int(12000 * math.Sin(2*math.Pi*220*float64(i)/testRate))
		data[2*i], data[2*i+1] = v, v
	}
	enc := gowav.NewEncoder(f, testRate, 16, 2, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDeckPlaysWithTransportStopped(t *testing.T) {
	e := newTestEngine(t)
	f, err := os.Open(writeTestWAV(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := e.LoadSample(f); err != nil {
		t.Fatal(err)
	}
	if err := e.DeckPlay(); err != nil {
		t.Fatal(err)
	}
	process(e, testRate/2, 512)
	if !e.DeckPlaying() || math.Abs(e.DeckPosition()-0.5) > 1e-3 {
		t.Fatalf("deck playing=%v position=%v, want playing at 0.5", e.DeckPlaying(), e.DeckPosition())
	}
	if e.Peak() == 0 {
		t.Fatal("deck output is silent")
	}
	if e.Playing() {
		t.Fatal("deck play started the transport")
	}
}

func TestStutterSlipsDeck(t *testing.T) {
	e := newTestEngine(t)
	f, err := os.Open(writeTestWAV(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := e.LoadSample(f); err != nil {
		t.Fatal(err)
	}
	e.DeckPlay()
	process(e, 4100, 512)
	e.EngageStutter(1)
	process(e, 2000, 512)
	e.ReleaseStutter()
	e.Process(nil)

	// engaged at 0.5125 s, held 0.25 s at rate 1
	if got := e.DeckPosition(); math.Abs(got-0.7625) > 1e-3 {
		t.Fatalf("position after release = %v, want 0.7625", got)
	}
}

func TestLoadSampleFailureLeavesDeckEmpty(t *testing.T) {
	e := newTestEngine(t)
	err := e.LoadSample(bytes.NewReader([]byte("definitely not audio")))
	if !errors.Is(err, deck.ErrDecode) {
		t.Fatalf("err = %v, want deck.ErrDecode", err)
	}
	e.Process(make([]float32, 64))
	if e.DeckLoaded() {
		t.Fatal("deck reports a sample after a failed load")
	}
	if err := e.DeckPlay(); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 512)
	e.Process(out)
	for _, s := range out {
		if s != 0 {
			t.Fatal("empty deck produced sound")
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkProcess(b *testing.B) {
	e, err := New(48000, WithRandomSource(rand.New(rand.NewSource(1))), WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	NewStudio(e, session.Default())
	e.SetReverbSend(0.3)
	e.SetDelaySend(0.3)
	e.Play()
	buf := make([]float32, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Process(buf)
	}
}
