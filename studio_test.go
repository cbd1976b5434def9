package shadowcore

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/lyraflex/shadowcore/internal/session"
)

func newTestStudio(t *testing.T, opts ...StudioOption) (*Studio, *Engine) {
	t.Helper()
	e := newTestEngine(t)
	opts = append([]StudioOption{WithEditRandom(rand.New(rand.NewSource(3)))}, opts...)
	return NewStudio(e, session.Default(), opts...), e
}

func TestStudioEditReachesNextTick(t *testing.T) {
	st, e := newTestStudio(t)
	events := e.Watch()
	st.Play()
	process(e, stepLen/2, 256)
	if err := st.ToggleStep(0, 1); err != nil {
		t.Fatal(err)
	}
	process(e, stepLen, 256)

	steps := stepEvents(drain(events))
	if len(steps) != 2 || !steps[1].Fired[0] {
		t.Fatalf("toggled kick step 1 did not fire: %+v", steps)
	}
}

func TestStudioCommitsQueuedPatternAtBar(t *testing.T) {
	st, e := newTestStudio(t)
	events := e.Watch()
	st.Play()
	process(e, 3*stepLen+10, 256)
	if err := st.QueuePattern("SECTOR_B"); err != nil {
		t.Fatal(err)
	}
	if err := st.ToggleStep(0, 15); err != nil {
		t.Fatal(err)
	}
	process(e, 17*stepLen, 256)

	var fired []bool
	for _, ev := range drain(events) {
		st.Handle(ev)
		if ev.Kind == EventStep && ev.Tick >= 16 {
			fired = append(fired, ev.Fired[0])
		}
	}
	s := st.Snapshot()
	if s.ActivePatternID != "SECTOR_B" || s.NextPatternID != "" {
		t.Fatalf("active=%q next=%q, want SECTOR_B committed", s.ActivePatternID, s.NextPatternID)
	}
	// SECTOR_B kick: x..x..x..x..x.x.
	want := []bool{true, false, false, true}
	for i, w := range want {
		if fired[i] != w {
			t.Fatalf("kick after changeover = %v, want prefix %v", fired, want)
		}
	}
	if s.Patterns["SECTOR_A"].Tracks[0].Steps[15].Active != true {
		t.Fatal("edit before the bar was lost")
	}
}

func TestStudioFollowsChangeoverWithFullWatchChannel(t *testing.T) {
	st, e := newTestStudio(t)
	events := e.Watch()
	st.Play()
	// nobody drains: the channel fills long before the changeover
	process(e, 70*stepLen+10, 256)
	if err := st.QueuePattern("SECTOR_B"); err != nil {
		t.Fatal(err)
	}
	process(e, 16*stepLen, 256)
	for _, ev := range drain(events) {
		st.Handle(ev)
	}
	s := st.Snapshot()
	if s.ActivePatternID != "SECTOR_B" || s.NextPatternID != "" {
		t.Fatalf("active=%q next=%q, want SECTOR_B committed", s.ActivePatternID, s.NextPatternID)
	}
	if id, _ := e.LivePattern(); id != "SECTOR_B" {
		t.Fatalf("engine plays %q", id)
	}

	// SECTOR_B kick step 7 is off; tick 87 plays it
	if err := st.ToggleStep(0, 7); err != nil {
		t.Fatal(err)
	}
	process(e, 2*stepLen, 256)
	var found bool
	for _, ev := range stepEvents(drain(events)) {
		if ev.Tick == 87 {
			found = true
			if ev.PatternID != "SECTOR_B" || !ev.Fired[0] {
				t.Fatalf("edit after changeover did not reach the engine: %+v", ev)
			}
		}
	}
	if !found {
		t.Fatal("no step event for tick 87")
	}
}

type paramRecorder struct {
	inst       session.Instrument
	prev, next session.TrackParams
	calls      int
}

func (r *paramRecorder) ParamChanges(inst session.Instrument, prev, next session.TrackParams) {
	r.inst, r.prev, r.next = inst, prev, next
	r.calls++
}

func TestStudioUpdateTrackSendsParams(t *testing.T) {
	rec := &paramRecorder{}
	st, _ := newTestStudio(t, WithParamSink(rec))
	p := st.ActiveTracks()[1].Params
	old := p
	p.Decay = 0.42
	if err := st.UpdateTrack(1, session.TrackUpdate{Params: &p}); err != nil {
		t.Fatal(err)
	}
	if rec.calls != 1 || rec.inst != session.Snare || rec.prev != old || rec.next.Decay != 0.42 {
		t.Fatalf("param sink got %+v", rec)
	}
	mute := true
	if err := st.UpdateTrack(1, session.TrackUpdate{Mute: &mute}); err != nil {
		t.Fatal(err)
	}
	if rec.calls != 1 {
		t.Fatal("mute edit reached the param sink")
	}
	if err := st.UpdateTrack(9, session.TrackUpdate{Mute: &mute}); !errors.Is(err, session.ErrTrackIndex) {
		t.Fatalf("err = %v, want ErrTrackIndex", err)
	}
}

// snapshotSink reads the studio from inside ParamChanges.
type snapshotSink struct {
	st   *Studio
	seen float64
}

func (k *snapshotSink) ParamChanges(_ session.Instrument, _, _ session.TrackParams) {
	k.seen = k.st.Snapshot().Patterns["SECTOR_A"].Tracks[1].Params.Decay
}

func TestStudioParamSinkRunsUnlocked(t *testing.T) {
	sink := &snapshotSink{}
	st, _ := newTestStudio(t, WithParamSink(sink))
	sink.st = st
	p := st.ActiveTracks()[1].Params
	p.Decay = 0.33
	done := make(chan error, 1)
	go func() { done <- st.UpdateTrack(1, session.TrackUpdate{Params: &p}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateTrack blocked while the sink read the studio")
	}
	if sink.seen != 0.33 {
		t.Fatalf("sink saw decay %v, want the applied 0.33", sink.seen)
	}
}

func TestStudioSaveLoad(t *testing.T) {
	st, _ := newTestStudio(t)
	if err := st.SetBPM(133); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddTrack(session.Acid303); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := st.Save(&buf); err != nil {
		t.Fatal(err)
	}

	other, e := newTestStudio(t)
	if err := other.Load(&buf); err != nil {
		t.Fatal(err)
	}
	if other.BPM() != 133 || e.BPM() != 133 {
		t.Fatalf("bpm studio=%v engine=%v, want 133", other.BPM(), e.BPM())
	}
	a, b := st.ActiveTracks(), other.ActiveTracks()
	if len(a) != 5 || len(b) != 5 || a[4].ID != b[4].ID {
		t.Fatalf("tracks differ after load: %d vs %d", len(a), len(b))
	}
}

func TestStudioRejectsBadBPM(t *testing.T) {
	st, e := newTestStudio(t)
	if err := st.SetBPM(-1); !errors.Is(err, session.ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
	if st.BPM() != 120 || e.BPM() != 120 {
		t.Fatalf("bpm changed to studio=%v engine=%v", st.BPM(), e.BPM())
	}
}

func TestStudioExportMIDI(t *testing.T) {
	st, _ := newTestStudio(t)
	var buf bytes.Buffer
	if err := st.ExportMIDI(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("MThd")) {
		t.Fatalf("export does not start with MThd: % x", buf.Bytes()[:8])
	}
}

func TestStudioRunStopsWithContext(t *testing.T) {
	st, e := newTestStudio(t)
	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan Event, 64)
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx, func(ev Event) { seen <- ev }) }()

	// Run installs its watch channel asynchronously; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	st.Play()
	for len(seen) == 0 && time.Now().Before(deadline) {
		process(e, stepLen, 256)
		time.Sleep(5 * time.Millisecond)
	}
	if len(seen) == 0 {
		t.Fatal("Run delivered no events")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if st.Snapshot().CurrentStep < 0 {
		t.Fatal("current step not tracked")
	}
}
