package export

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/lyraflex/shadowcore/internal/session"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func fourOnTheFloor() []session.Track {
	kick := session.NewTrack(session.Kick, 16)
	for i := 0; i < 16; i += 4 {
		kick.Steps[i].Active = true
	}
	lead := session.NewTrack(session.LeadSquare, 16)
	lead.Steps[1].Active = true
	return []session.Track{kick, lead}
}

type note struct {
	tick uint32
	on   bool
	key  uint8
	ch   uint8
}

func notes(t *testing.T, s *smf.SMF) []note {
	t.Helper()
	var out []note
	var abs uint32
	for _, ev := range s.Tracks[0] {
		abs += ev.Delta
		var ch, key, vel uint8
		m := midi.Message(ev.Message)
		switch {
		case m.GetNoteOn(&ch, &key, &vel):
			out = append(out, note{tick: abs, on: vel > 0, key: key, ch: ch})
		case m.GetNoteOff(&ch, &key, &vel):
			out = append(out, note{tick: abs, key: key, ch: ch})
		}
	}
	return out
}

func TestWriteDrumPattern(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, fourOnTheFloor(), 128); err != nil {
		t.Fatal(err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if s.TimeFormat != smf.MetricTicks(TicksPerBeat) {
		t.Fatalf("time format = %v", s.TimeFormat)
	}
	if len(s.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(s.Tracks))
	}
	tempo := s.TempoChanges()
	if len(tempo) == 0 || math.Abs(tempo[0].BPM-128) > 0.01 {
		t.Fatalf("tempo = %+v, want 128", tempo)
	}

	got := notes(t, s)
	if len(got) != 8 {
		t.Fatalf("got %d note events, want 8: %+v", len(got), got)
	}
	for i, n := range got {
		beat := uint32(i/2) * TicksPerBeat
		want := note{tick: beat, on: true, key: 36, ch: 9}
		if i%2 == 1 {
			want = note{tick: beat + 108, key: 36, ch: 9}
		}
		if n != want {
			t.Fatalf("event %d = %+v, want %+v", i, n, want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pattern.mid")
	if err := WriteFile(path, fourOnTheFloor(), 0); err != nil {
		t.Fatal(err)
	}
	s, err := smf.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tempo := s.TempoChanges(); len(tempo) == 0 || math.Abs(tempo[0].BPM-120) > 0.01 {
		t.Fatalf("tempo = %+v, want default 120", tempo)
	}
}
