// Package midiout mirrors percussive firings and parameter tweaks to a MIDI
// output in the TR-8S layout.
package midiout

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/lyraflex/shadowcore/internal/session"
	"gitlab.com/gomidi/midi/v2"
)

// Port is an open MIDI output; gomidi's drivers.Out satisfies it.
type Port interface {
	Send(data []byte) error
}

const (
	// DrumChannel is MIDI channel 10.
	DrumChannel = 9

	// NoteLength is the delay before the automatic note off.
	NoteLength = 100 * time.Millisecond
)

// NoteMap assigns General MIDI drum notes. Melodic instruments have no entry
// and are not mirrored.
var NoteMap = map[session.Instrument]uint8{
	session.Kick:        36,
	session.Snare:       38,
	session.HihatClosed: 42,
	session.HihatOpen:   46,
	session.TomLow:      41,
	session.TomMid:      45,
	session.TomHigh:     50,
	session.RimShot:     37,
	session.HandClap:    39,
	session.Crash:       49,
	session.Ride:        51,
}

// CCMap assigns controller numbers to instrument parameters.
var CCMap = map[session.Instrument]map[string]uint8{
	session.Kick:        {"pitch": 20, "decay": 21, "tone": 22, "filterCutoff": 23},
	session.Snare:       {"pitch": 24, "decay": 25, "tone": 26, "filterCutoff": 27},
	session.HihatClosed: {"pitch": 28, "decay": 29, "tone": 30},
	session.HihatOpen:   {"pitch": 31, "decay": 32, "tone": 33},
	session.HandClap:    {"pitch": 34, "decay": 35, "tone": 36},
	session.TomLow:      {"pitch": 37, "decay": 38},
	session.TomMid:      {"pitch": 39, "decay": 40},
	session.TomHigh:     {"pitch": 41, "decay": 42},
}

// Velocity converts a firing volume to a MIDI velocity.
func Velocity(volume float64) uint8 {
	return uint8(math.Max(0, math.Min(127, math.Floor(volume*127))))
}

// CCValue scales a parameter value to 0..127: cutoff logarithmically, pitch
// in tens of hertz, everything else linearly from [0, 1].
func CCValue(param string, value float64) uint8 {
	var v float64
	switch param {
	case "filterCutoff":
		if value > 0 {
			v = (math.Log10(value) - 1.7) * 40
		}
	case "pitch":
		v = value / 10
	default:
		v = value * 127
	}
	return uint8(math.Max(0, math.Min(127, math.Floor(v))))
}

// Out writes to a Port. Its methods may block on the port and belong on a
// notification goroutine, not the render path.
type Out struct {
	mu      sync.Mutex
	port    Port
	logger  *log.Logger
	noteLen time.Duration
	failing bool
	closed  bool
	timers  sync.WaitGroup
}

func New(port Port, logger *log.Logger) *Out {
	return &Out{port: port, logger: logger, noteLen: NoteLength}
}

// Note sends a note on for a percussive instrument and schedules its note
// off. Other instruments are ignored.
func (o *Out) Note(inst session.Instrument, volume float64) {
	key, ok := NoteMap[inst]
	if !ok {
		return
	}
	if !o.send(midi.NoteOn(DrumChannel, key, Velocity(volume))) {
		return
	}
	o.timers.Add(1)
	time.AfterFunc(o.noteLen, func() {
		defer o.timers.Done()
		o.send(midi.NoteOff(DrumChannel, key))
	})
}

// Param sends a control change for a mapped instrument parameter.
func (o *Out) Param(inst session.Instrument, param string, value float64) {
	cc, ok := CCMap[inst][param]
	if !ok {
		return
	}
	o.send(midi.ControlChange(DrumChannel, cc, CCValue(param, value)))
}

// ParamChanges sends every mapped parameter of p that differs from prev.
func (o *Out) ParamChanges(inst session.Instrument, prev, p session.TrackParams) {
	if p.Pitch != prev.Pitch {
		o.Param(inst, "pitch", p.Pitch)
	}
	if p.Decay != prev.Decay {
		o.Param(inst, "decay", p.Decay)
	}
	if p.Tone != prev.Tone {
		o.Param(inst, "tone", p.Tone)
	}
	if p.FilterCutoff != prev.FilterCutoff {
		o.Param(inst, "filterCutoff", p.FilterCutoff)
	}
}

func (o *Out) send(msg midi.Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.port == nil {
		return false
	}
	if err := o.port.Send(msg); err != nil {
		if !o.failing && o.logger != nil {
			o.logger.Printf("midi out: %v", err)
		}
		o.failing = true
		return false
	}
	o.failing = false
	return true
}

// Close waits for pending note offs and stops sending.
func (o *Out) Close() {
	o.timers.Wait()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
