package session

import (
	"fmt"
	"math/rand"
)

// StepField names an editable continuous value of a step.
type StepField int

const (
	Velocity StepField = iota
	Probability
)

func (s *Session) activePattern() (*Pattern, error) {
	p, ok := s.Patterns[s.ActivePatternID]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, s.ActivePatternID)
	}
	return p, nil
}

func (s *Session) track(i int) (*Track, error) {
	p, err := s.activePattern()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(p.Tracks) {
		return nil, fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	return &p.Tracks[i], nil
}

func (s *Session) step(track, step int) (*Step, error) {
	t, err := s.track(track)
	if err != nil {
		return nil, err
	}
	if step < 0 || step >= len(t.Steps) {
		return nil, fmt.Errorf("%w: %d", ErrStepIndex, step)
	}
	return &t.Steps[step], nil
}

// ToggleStep flips the active flag of a step. Probability and velocity are
// left as they were.
func (s *Session) ToggleStep(track, step int) error {
	st, err := s.step(track, step)
	if err != nil {
		return err
	}
	st.Active = !st.Active
	return nil
}

// SetStepValue sets velocity or probability of a step, clamped to [0,1].
func (s *Session) SetStepValue(track, step int, field StepField, v float64) error {
	st, err := s.step(track, step)
	if err != nil {
		return err
	}
	v = clamp01(v)
	switch field {
	case Velocity:
		st.Velocity = v
	case Probability:
		st.Probability = v
	default:
		return fmt.Errorf("session: unknown step field %d", field)
	}
	return nil
}

// ClearTrack deactivates every step of a track.
func (s *Session) ClearTrack(track int) error {
	t, err := s.track(track)
	if err != nil {
		return err
	}
	for i := range t.Steps {
		t.Steps[i].Active = false
	}
	return nil
}

// RandomizeTrack replaces the steps of one track with a sparse random grid.
func (s *Session) RandomizeTrack(track int, rng *rand.Rand) error {
	t, err := s.track(track)
	if err != nil {
		return err
	}
	randomizeSteps(t.Steps, rng, 0.7, 0.5, 0.5)
	return nil
}

// RandomizeAll randomizes every track of the active pattern with a sparser
// grid than RandomizeTrack.
func (s *Session) RandomizeAll(rng *rand.Rand) error {
	p, err := s.activePattern()
	if err != nil {
		return err
	}
	for i := range p.Tracks {
		randomizeSteps(p.Tracks[i].Steps, rng, 0.8, 0.4, 0.6)
	}
	return nil
}

func randomizeSteps(steps []Step, rng *rand.Rand, threshold, minVel, minProb float64) {
	for i := range steps {
		steps[i] = Step{
			Active:      rng.Float64() > threshold,
			Velocity:    minVel + rng.Float64()*(1-minVel),
			Probability: minProb + rng.Float64()*(1-minProb),
		}
	}
}

// TrackUpdate is a partial track edit. Nil fields are left unchanged.
type TrackUpdate struct {
	Name   *string
	Mute   *bool
	Solo   *bool
	Pan    *float64
	Params *TrackParams
}

func (s *Session) UpdateTrack(track int, u TrackUpdate) error {
	t, err := s.track(track)
	if err != nil {
		return err
	}
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Mute != nil {
		t.Mute = *u.Mute
	}
	if u.Solo != nil {
		t.Solo = *u.Solo
	}
	if u.Pan != nil {
		t.Pan = clamp(*u.Pan, -1, 1)
	}
	if u.Params != nil {
		t.Params = *u.Params
	}
	return nil
}

// AddTrack appends a fresh track of the given instrument to the active
// pattern and returns it.
func (s *Session) AddTrack(inst Instrument) (Track, error) {
	if !inst.Valid() {
		return Track{}, fmt.Errorf("session: unknown instrument %q", inst)
	}
	p, err := s.activePattern()
	if err != nil {
		return Track{}, err
	}
	t := NewTrack(inst, s.stepsPerBar())
	p.Tracks = append(p.Tracks, t)
	return t.Clone(), nil
}

func (s *Session) RemoveTrack(track int) error {
	p, err := s.activePattern()
	if err != nil {
		return err
	}
	if track < 0 || track >= len(p.Tracks) {
		return fmt.Errorf("%w: %d", ErrTrackIndex, track)
	}
	p.Tracks = append(p.Tracks[:track], p.Tracks[track+1:]...)
	return nil
}

// QueuePattern marks a pattern to become active at the next bar boundary.
// Queueing the active pattern clears any pending switch.
func (s *Session) QueuePattern(id string) error {
	if _, ok := s.Patterns[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, id)
	}
	if id == s.ActivePatternID {
		s.NextPatternID = ""
		return nil
	}
	s.NextPatternID = id
	return nil
}

// CommitQueuedPattern makes the queued pattern active. It reports whether a
// switch happened.
func (s *Session) CommitQueuedPattern() bool {
	id := s.NextPatternID
	s.NextPatternID = ""
	if id == "" || id == s.ActivePatternID {
		return false
	}
	if _, ok := s.Patterns[id]; !ok {
		return false
	}
	s.ActivePatternID = id
	return true
}

// Update is a partial session edit. Tracks, when non-nil, replaces the active
// pattern's track list wholesale.
type Update struct {
	BPM    *float64 `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	Swing  *float64 `json:"swing,omitempty" yaml:"swing,omitempty"`
	Tracks []Track  `json:"tracks,omitempty" yaml:"tracks,omitempty"`
}

func (s *Session) ApplyUpdate(u Update) error {
	if u.BPM != nil {
		if *u.BPM <= 0 {
			return fmt.Errorf("%w: bpm %v", ErrInvalidSession, *u.BPM)
		}
		s.BPM = *u.BPM
	}
	if u.Swing != nil {
		s.Swing = clamp01(*u.Swing)
	}
	if u.Tracks != nil {
		p, err := s.activePattern()
		if err != nil {
			return err
		}
		p.Tracks = CloneTracks(u.Tracks)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }
