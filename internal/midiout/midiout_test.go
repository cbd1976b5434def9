package midiout

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lyraflex/shadowcore/internal/session"
)

type recordingPort struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (p *recordingPort) Send(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, append([]byte(nil), b...))
	return nil
}

func (p *recordingPort) messages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.msgs...)
}

func TestDrumNoteOnAndOff(t *testing.T) {
	port := &recordingPort{}
	o := New(port, nil)
	o.noteLen = time.Millisecond
	o.Note(session.Kick, 0.72)
	o.Close()
	msgs := port.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages", len(msgs))
	}
	// floor(0.72*127) = 91
	if !bytes.Equal(msgs[0], []byte{0x99, 36, 91}) {
		t.Fatalf("note on = % x", msgs[0])
	}
	if msgs[1][0] != 0x89 || msgs[1][1] != 36 {
		t.Fatalf("note off = % x", msgs[1])
	}
}

func TestMelodicInstrumentsAreNotSent(t *testing.T) {
	port := &recordingPort{}
	o := New(port, nil)
	o.Note(session.Acid303, 1)
	o.Note(session.PadSaw, 1)
	o.Close()
	if n := len(port.messages()); n != 0 {
		t.Fatalf("sent %d messages", n)
	}
}

func TestParamCC(t *testing.T) {
	port := &recordingPort{}
	o := New(port, nil)
	o.ParamChanges(session.Snare,
		session.TrackParams{Pitch: 200, Decay: 0.2, Tone: 0.5, FilterCutoff: 3000},
		session.TrackParams{Pitch: 250, Decay: 0.2, Tone: 1, FilterCutoff: 3000})
	o.Param(session.TomLow, "tone", 1) // unmapped
	o.Close()
	msgs := port.messages()
	want := [][]byte{{0xb9, 24, 25}, {0xb9, 26, 127}}
	if len(msgs) != len(want) {
		t.Fatalf("sent % x", msgs)
	}
	for i := range want {
		if !bytes.Equal(msgs[i], want[i]) {
			t.Fatalf("msg %d = % x, want % x", i, msgs[i], want[i])
		}
	}
}

func TestCCValue(t *testing.T) {
	cases := []struct {
		param string
		v     float64
		want  uint8
	}{
		{"filterCutoff", 50, 0},
		{"filterCutoff", 500, 39},
		{"filterCutoff", 1e9, 127},
		{"pitch", 440, 44},
		{"decay", 0.5, 63},
		{"tone", -1, 0},
	}
	for _, c := range cases {
		if got := CCValue(c.param, c.v); got != c.want {
			t.Errorf("CCValue(%s, %v) = %d, want %d", c.param, c.v, got, c.want)
		}
	}
}

func TestSendFailureIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	port := &recordingPort{err: errors.New("port gone")}
	o := New(port, log.New(&buf, "", 0))
	o.Note(session.Snare, 1)
	o.Note(session.Snare, 1)
	o.Close()
	if n := strings.Count(buf.String(), "port gone"); n != 1 {
		t.Fatalf("logged %d times: %q", n, buf.String())
	}
}
