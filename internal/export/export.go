// Package export writes the active pattern as a Standard MIDI File laid out
// for drum machine import.
package export

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lyraflex/shadowcore/internal/midiout"
	"github.com/lyraflex/shadowcore/internal/session"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	TicksPerBeat = 480
	TicksPerStep = TicksPerBeat / 4

	// gate is the note length as a fraction of a step.
	gate     = 0.9
	velocity = 100
)

type event struct {
	tick uint32
	on   bool
	key  uint8
}

// Build converts tracks to a single-track SMF. Every active step of a
// percussive track becomes a note on channel 10; melodic tracks have no
// drum mapping and are skipped. Mute and probability are ignored.
func Build(tracks []session.Track, bpm float64) (*smf.SMF, error) {
	if bpm <= 0 {
		bpm = session.DefaultBPM
	}
	var events []event
	for _, t := range tracks {
		key, ok := midiout.NoteMap[t.Type]
		if !ok {
			continue
		}
		for i, st := range t.Steps {
			if !st.Active {
				continue
			}
			on := uint32(i * TicksPerStep)
			events = append(events,
				event{tick: on, on: true, key: key},
				event{tick: on + uint32(TicksPerStep*gate), key: key})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(bpm))
	last := uint32(0)
	for _, ev := range events {
		msg := midi.NoteOff(midiout.DrumChannel, ev.key)
		if ev.on {
			msg = midi.NoteOn(midiout.DrumChannel, ev.key, velocity)
		}
		tr.Add(ev.tick-last, msg)
		last = ev.tick
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return s, nil
}

// Write encodes tracks as an SMF to w.
func Write(w io.Writer, tracks []session.Track, bpm float64) error {
	s, err := Build(tracks, bpm)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// WriteFile writes tracks to path, replacing any existing file.
func WriteFile(path string, tracks []session.Track, bpm float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := Write(f, tracks, bpm); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
