package shadowcore

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/lyraflex/shadowcore/internal/export"
	"github.com/lyraflex/shadowcore/internal/session"
)

// ParamSink mirrors parameter tweaks, for example as MIDI control changes.
type ParamSink interface {
	ParamChanges(inst session.Instrument, prev, next session.TrackParams)
}

type StudioOption func(*Studio)

func WithParamSink(s ParamSink) StudioOption {
	return func(st *Studio) { st.params = s }
}

// WithEditRandom fixes the source used by the randomize edits.
func WithEditRandom(rng *rand.Rand) StudioOption {
	return func(st *Studio) { st.rng = rng }
}

// Studio owns the session. Every edit is applied to the session and the
// resulting active track list is handed to the engine, so the next tick
// sees it.
type Studio struct {
	mu     sync.Mutex
	s      *session.Session
	engine *Engine
	params ParamSink
	rng    *rand.Rand

	// last engine pattern serial the session has followed
	seenPattern uint64
}

// NewStudio binds s to e and loads its active pattern. A nil session starts
// from the factory patterns.
func NewStudio(e *Engine, s *session.Session, opts ...StudioOption) *Studio {
	if s == nil {
		s = session.Default()
	}
	st := &Studio{s: s, engine: e}
	for _, opt := range opts {
		opt(st)
	}
	if st.rng == nil {
		st.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	st.load()
	return st
}

func (st *Studio) Engine() *Engine { return st.engine }

// load pushes the whole session to the engine.
func (st *Studio) load() {
	s := st.s
	_, st.seenPattern = st.engine.LivePattern()
	st.engine.SetBPM(s.BPM)
	if s.TimeSignature > 0 {
		st.engine.SetStepsPerBar(s.TimeSignature)
	}
	st.engine.LoadPattern(s.ActivePatternID, session.ActiveTracks(s))
	if next := s.NextPatternID; next != "" && next != s.ActivePatternID {
		if p, ok := s.Patterns[next]; ok {
			st.engine.QueuePattern(next, p.Tracks)
		}
	}
}

// follow adopts a pattern change the engine made since the last call, so a
// dropped EventPatternChanged cannot leave the session on the old pattern.
// Callers hold mu.
func (st *Studio) follow() {
	id, serial := st.engine.LivePattern()
	if serial == st.seenPattern {
		return
	}
	st.seenPattern = serial
	switch {
	case id == st.s.ActivePatternID:
	case id == st.s.NextPatternID:
		st.s.CommitQueuedPattern()
	default:
		if _, ok := st.s.Patterns[id]; ok {
			st.s.ActivePatternID = id
		}
	}
}

// push hands the active track list to the engine. Callers hold mu.
func (st *Studio) push() {
	st.engine.SetTracks(st.s.ActivePatternID, session.ActiveTracks(st.s))
}

func (st *Studio) edit(fn func(s *session.Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.follow()
	if err := fn(st.s); err != nil {
		return err
	}
	st.push()
	return nil
}

func (st *Studio) ToggleStep(track, step int) error {
	return st.edit(func(s *session.Session) error { return s.ToggleStep(track, step) })
}

func (st *Studio) SetStepValue(track, step int, field session.StepField, v float64) error {
	return st.edit(func(s *session.Session) error { return s.SetStepValue(track, step, field, v) })
}

func (st *Studio) ClearTrack(track int) error {
	return st.edit(func(s *session.Session) error { return s.ClearTrack(track) })
}

func (st *Studio) RandomizeTrack(track int) error {
	return st.edit(func(s *session.Session) error { return s.RandomizeTrack(track, st.rng) })
}

func (st *Studio) RandomizeAll() error {
	return st.edit(func(s *session.Session) error { return s.RandomizeAll(st.rng) })
}

// UpdateTrack applies u. Parameter changes are also sent to the param sink,
// after the studio lock is released.
func (st *Studio) UpdateTrack(track int, u session.TrackUpdate) error {
	var prev session.Track
	err := st.edit(func(s *session.Session) error {
		tracks := session.ActiveTracks(s)
		if track >= 0 && track < len(tracks) {
			prev = tracks[track]
		}
		return s.UpdateTrack(track, u)
	})
	if err == nil && u.Params != nil && st.params != nil {
		st.params.ParamChanges(prev.Type, prev.Params, *u.Params)
	}
	return err
}

func (st *Studio) AddTrack(inst session.Instrument) (session.Track, error) {
	var t session.Track
	err := st.edit(func(s *session.Session) (err error) {
		t, err = s.AddTrack(inst)
		return err
	})
	return t, err
}

func (st *Studio) RemoveTrack(track int) error {
	return st.edit(func(s *session.Session) error { return s.RemoveTrack(track) })
}

// ApplyUpdate applies a partial update from an editing collaborator.
func (st *Studio) ApplyUpdate(u session.Update) error {
	err := st.edit(func(s *session.Session) error { return s.ApplyUpdate(u) })
	if err == nil && u.BPM != nil {
		st.engine.SetBPM(*u.BPM)
	}
	return err
}

// SetBPM sets the session tempo. Non-positive values are rejected by the
// session and ignored by the engine.
func (st *Studio) SetBPM(bpm float64) error {
	return st.ApplyUpdate(session.Update{BPM: &bpm})
}

func (st *Studio) SetSwing(swing float64) error {
	return st.ApplyUpdate(session.Update{Swing: &swing})
}

// QueuePattern schedules pattern id for the next bar start. Queueing the
// active pattern cancels a pending switch.
func (st *Studio) QueuePattern(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.follow()
	if err := st.s.QueuePattern(id); err != nil {
		return err
	}
	if st.s.NextPatternID == "" {
		st.engine.ClearQueue()
		return nil
	}
	st.engine.QueuePattern(id, st.s.Patterns[id].Tracks)
	return nil
}

// Play starts the transport.
func (st *Studio) Play() error {
	if err := st.engine.Play(); err != nil {
		return err
	}
	st.mu.Lock()
	st.s.Playing = true
	st.mu.Unlock()
	return nil
}

func (st *Studio) Pause() {
	st.engine.Pause()
	st.mu.Lock()
	st.s.Playing = false
	st.mu.Unlock()
}

func (st *Studio) Stop() {
	st.engine.Stop()
	st.mu.Lock()
	st.s.Playing = false
	st.s.CurrentStep = 0
	st.mu.Unlock()
}

// Handle applies an engine event to the session: the current step follows
// step events and a pattern changeover commits the queued pattern.
func (st *Studio) Handle(ev Event) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.follow()
	switch ev.Kind {
	case EventStep:
		st.s.CurrentStep = ev.Step
	case EventPatternChanged:
		if st.s.NextPatternID == ev.PatternID {
			st.s.CommitQueuedPattern()
		} else if _, ok := st.s.Patterns[ev.PatternID]; ok {
			st.s.ActivePatternID = ev.PatternID
		}
	}
}

// Run watches the engine until ctx ends, applying events and passing them
// on to fn when it is not nil.
func (st *Studio) Run(ctx context.Context, fn func(Event)) error {
	events := st.engine.Watch()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			st.Handle(ev)
			if fn != nil {
				fn(ev)
			}
		}
	}
}

// ActiveTracks returns a copy of the active pattern's tracks.
func (st *Studio) ActiveTracks() []session.Track {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.follow()
	return session.CloneTracks(session.ActiveTracks(st.s))
}

func (st *Studio) BPM() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.BPM
}

// Snapshot returns a deep copy of the session.
func (st *Studio) Snapshot() *session.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.follow()
	return st.s.Clone()
}

func (st *Studio) Save(w io.Writer) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.follow()
	return st.s.Save(w)
}

// Load replaces the session with one read from r and reloads the engine.
func (st *Studio) Load(r io.Reader) error {
	s, err := session.Load(r)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s.Playing = st.s.Playing
	st.s = s
	st.load()
	return nil
}

// ExportMIDI writes the active pattern as a Standard MIDI File.
func (st *Studio) ExportMIDI(w io.Writer) error {
	st.mu.Lock()
	st.follow()
	tracks := session.CloneTracks(session.ActiveTracks(st.s))
	bpm := st.s.BPM
	st.mu.Unlock()
	return export.Write(w, tracks, bpm)
}
