package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the persisted shape. Tracks mirrors the active pattern so that
// files written here can be read by tools that only look at the top level.
type document struct {
	BPM             float64             `json:"bpm" yaml:"bpm"`
	Swing           float64             `json:"swing" yaml:"swing"`
	Playing         bool                `json:"playing" yaml:"playing"`
	CurrentStep     int                 `json:"currentStep" yaml:"currentStep"`
	ActivePatternID string              `json:"activePatternId" yaml:"activePatternId"`
	NextPatternID   *string             `json:"nextPatternId" yaml:"nextPatternId"`
	Patterns        map[string]*Pattern `json:"patterns" yaml:"patterns"`
	Tracks          []Track             `json:"tracks" yaml:"tracks"`
	TimeSignature   int                 `json:"timeSignature" yaml:"timeSignature"`
}

const importedPatternID = "IMPORTED"

// Save writes the session as indented JSON.
func (s *Session) Save(w io.Writer) error {
	doc := document{
		BPM:             s.BPM,
		Swing:           s.Swing,
		Playing:         s.Playing,
		CurrentStep:     s.CurrentStep,
		ActivePatternID: s.ActivePatternID,
		Patterns:        s.Patterns,
		Tracks:          ActiveTracks(s),
		TimeSignature:   s.TimeSignature,
	}
	if s.NextPatternID != "" {
		next := s.NextPatternID
		doc.NextPatternID = &next
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	return nil
}

// Load reads a session written by Save. YAML documents with the same field
// names are accepted too. A document without patterns but with a top-level
// track list is imported as a single active pattern.
func Load(r io.Reader) (*Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("session: read: %w", err)
	}
	var doc document
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return fromDocument(doc)
}

func fromDocument(doc document) (*Session, error) {
	if doc.BPM <= 0 {
		return nil, fmt.Errorf("%w: missing or non-positive bpm", ErrInvalidSession)
	}
	s := &Session{
		BPM:             doc.BPM,
		Swing:           clamp01(doc.Swing),
		Playing:         doc.Playing,
		CurrentStep:     doc.CurrentStep,
		ActivePatternID: doc.ActivePatternID,
		TimeSignature:   doc.TimeSignature,
		Patterns:        make(map[string]*Pattern, len(doc.Patterns)),
	}
	if s.TimeSignature <= 0 {
		s.TimeSignature = DefaultTimeSignature
	}
	for id, p := range doc.Patterns {
		if p == nil {
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		s.Patterns[id] = p
	}
	if len(s.Patterns) == 0 {
		if len(doc.Tracks) == 0 {
			return nil, fmt.Errorf("%w: no patterns or tracks", ErrInvalidSession)
		}
		id := s.ActivePatternID
		if id == "" {
			id = importedPatternID
		}
		s.Patterns[id] = &Pattern{ID: id, Name: id, Tracks: doc.Tracks}
		s.ActivePatternID = id
	}
	if _, ok := s.Patterns[s.ActivePatternID]; !ok {
		s.ActivePatternID = s.PatternIDs()[0]
	}
	if doc.NextPatternID != nil {
		if _, ok := s.Patterns[*doc.NextPatternID]; ok {
			s.NextPatternID = *doc.NextPatternID
		}
	}
	for _, p := range s.Patterns {
		for i := range p.Tracks {
			if p.Tracks[i].ID == "" {
				p.Tracks[i].ID = newTrackID(p.Tracks[i].Type)
			}
		}
	}
	return s, nil
}

type stepFields Step

// UnmarshalJSON fills fields missing from data with the NewStep defaults.
func (st *Step) UnmarshalJSON(data []byte) error {
	f := stepFields(NewStep())
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*st = Step(f)
	return nil
}

func (st *Step) UnmarshalYAML(value *yaml.Node) error {
	f := stepFields(NewStep())
	if err := value.Decode(&f); err != nil {
		return err
	}
	*st = Step(f)
	return nil
}

type trackFields Track

type trackHead struct {
	Type Instrument `json:"type" yaml:"type"`
}

// UnmarshalJSON fills parameters missing from data with the defaults of the
// track's instrument.
func (t *Track) UnmarshalJSON(data []byte) error {
	var head trackHead
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	f := trackFields{Type: head.Type, Params: DefaultParams(head.Type)}
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*t = Track(f)
	return nil
}

func (t *Track) UnmarshalYAML(value *yaml.Node) error {
	var head trackHead
	if err := value.Decode(&head); err != nil {
		return err
	}
	f := trackFields{Type: head.Type, Params: DefaultParams(head.Type)}
	if err := value.Decode(&f); err != nil {
		return err
	}
	*t = Track(f)
	return nil
}
