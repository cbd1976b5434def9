// Package session holds the sequencer data model: tracks, steps, patterns and
// the session that owns them.
package session

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

const (
	DefaultBPM           = 120
	DefaultTimeSignature = 16

	defaultProbability = 1.0
	defaultVelocity    = 0.8
)

var (
	ErrUnknownPattern = errors.New("session: unknown pattern")
	ErrTrackIndex     = errors.New("session: track index out of range")
	ErrStepIndex      = errors.New("session: step index out of range")
	ErrInvalidSession = errors.New("session: invalid session data")
)

type Step struct {
	Active      bool    `json:"active" yaml:"active"`
	Accent      bool    `json:"accent,omitempty" yaml:"accent,omitempty"`
	Probability float64 `json:"probability" yaml:"probability"`
	Velocity    float64 `json:"velocity" yaml:"velocity"`
}

// NewStep returns an inactive step with the default probability and velocity.
func NewStep() Step {
	return Step{Probability: defaultProbability, Velocity: defaultVelocity}
}

type TrackParams struct {
	Volume       float64 `json:"volume" yaml:"volume"`
	Decay        float64 `json:"decay" yaml:"decay"`
	Pitch        float64 `json:"pitch" yaml:"pitch"`
	Tone         float64 `json:"tone" yaml:"tone"`
	FilterCutoff float64 `json:"filterCutoff" yaml:"filterCutoff"`
}

type Track struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Type   Instrument  `json:"type" yaml:"type"`
	Steps  []Step      `json:"steps" yaml:"steps"`
	Mute   bool        `json:"mute" yaml:"mute"`
	Solo   bool        `json:"solo" yaml:"solo"`
	Pan    float64     `json:"pan" yaml:"pan"`
	Params TrackParams `json:"params" yaml:"params"`
}

// NewTrack returns a track with a fresh id, factory parameters and n
// inactive steps.
func NewTrack(inst Instrument, n int) Track {
	if n <= 0 {
		n = DefaultTimeSignature
	}
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = NewStep()
	}
	return Track{
		ID:     newTrackID(inst),
		Name:   DisplayName(inst),
		Type:   inst,
		Steps:  steps,
		Params: DefaultParams(inst),
	}
}

func newTrackID(inst Instrument) string {
	return "trk_" + string(inst) + "_" + uuid.New().String()
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	t.Steps = append([]Step(nil), t.Steps...)
	return t
}

// StepAt returns the step at index i. Out of range indices yield an inactive
// step.
func (t *Track) StepAt(i int) Step {
	if i < 0 || i >= len(t.Steps) {
		return Step{}
	}
	return t.Steps[i]
}

type Pattern struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Tracks []Track `json:"tracks" yaml:"tracks"`
}

func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	c := *p
	c.Tracks = CloneTracks(p.Tracks)
	return &c
}

// CloneTracks deep copies a track list.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

// Session is the aggregate root. The active track list is derived from
// Patterns on demand; see ActiveTracks.
type Session struct {
	BPM             float64
	Swing           float64
	Playing         bool
	CurrentStep     int
	ActivePatternID string
	NextPatternID   string
	Patterns        map[string]*Pattern
	TimeSignature   int
}

// ActiveTracks returns the track list of the active pattern, or nil if the
// active pattern does not exist. The returned slice aliases the session.
func ActiveTracks(s *Session) []Track {
	if s == nil {
		return nil
	}
	p, ok := s.Patterns[s.ActivePatternID]
	if !ok || p == nil {
		return nil
	}
	return p.Tracks
}

// PatternIDs returns the pattern ids in sorted order.
func (s *Session) PatternIDs() []string {
	ids := make([]string, 0, len(s.Patterns))
	for id := range s.Patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) Clone() *Session {
	c := *s
	c.Patterns = make(map[string]*Pattern, len(s.Patterns))
	for id, p := range s.Patterns {
		c.Patterns[id] = p.Clone()
	}
	return &c
}

func (s *Session) stepsPerBar() int {
	if s.TimeSignature <= 0 {
		return DefaultTimeSignature
	}
	return s.TimeSignature
}

// Default returns the factory session with four patterns.
func Default() *Session {
	s := &Session{
		BPM:             DefaultBPM,
		ActivePatternID: "SECTOR_A",
		TimeSignature:   DefaultTimeSignature,
		Patterns:        make(map[string]*Pattern, len(factoryPatterns)),
	}
	for _, fp := range factoryPatterns {
		p := &Pattern{ID: fp.id, Name: fp.name}
		for _, ft := range fp.tracks {
			p.Tracks = append(p.Tracks, gridTrack(ft.inst, ft.grid))
		}
		s.Patterns[fp.id] = p
	}
	return s
}

func gridTrack(inst Instrument, grid string) Track {
	t := NewTrack(inst, len(grid))
	for i := range grid {
		t.Steps[i].Active = grid[i] == 'x'
	}
	return t
}

type factoryTrack struct {
	inst Instrument
	grid string
}

var factoryPatterns = []struct {
	id, name string
	tracks   []factoryTrack
}{
	{"SECTOR_A", "ALPHA_LOOP", []factoryTrack{
		{Kick, "x...x...x...x..."},
		{Snare, "....x.......x..."},
		{HihatClosed, "xxxxxxxxxxxxxxxx"},
		{BassFM, "...x..x....x.x.."},
	}},
	{"SECTOR_B", "BETA_BREAK", []factoryTrack{
		{Kick, "x..x..x..x..x.x."},
		{Snare, "..x...x...x..x.x"},
		{HihatClosed, "x.x.x.x.x.x.x.x."},
		{BassFM, "x.x.x.x.x.x.x.x."},
	}},
	{"SECTOR_C", "GAMMA_ACID", []factoryTrack{
		{Kick, "x.......x......."},
		{Snare, "....x..x....x.xx"},
		{HihatOpen, "..x...x...x...x."},
		{Acid303, "xxx.xx.xxx.xx.xx"},
	}},
	{"SECTOR_D", "DELTA_RUSH", []factoryTrack{
		{Kick, "xxxxxxxxxxxxxxxx"},
		{Crash, "x.......x......."},
		{Ride, "x.x.x.x.x.x.x.x."},
		{FXGlitch, ".x.x.x.x.x.x.x.x"},
	}},
}
