// Package sequencer decides, once per clock tick, which tracks fire.
package sequencer

import (
	"math"
	"math/rand"
	"time"

	"github.com/lyraflex/shadowcore/internal/session"
)

// Trigger receives every firing. Implementations run on the render path and
// must not block.
type Trigger interface {
	Trigger(track int, t *session.Track, volume float64)
}

type Options struct {
	// StepsPerBar is the bar length used for pattern changeover and for the
	// stutter wrap. Defaults to 16.
	StepsPerBar int
	// Rand drives probability gating. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Report describes one tick.
type Report struct {
	Tick int
	// Step is the effective bar position after stutter.
	Step int
	// Fired holds one entry per track. It is reused by the next call to Step.
	Fired []bool
	// PatternChanged is set when the queued pattern PatternID became active
	// on this tick.
	PatternChanged bool
	PatternID      string
}

type stutter struct {
	engaged  bool
	interval int
	anchor   int
	counter  int
}

type Sequencer struct {
	trigger     Trigger
	rng         *rand.Rand
	stepsPerBar int

	tracks   []session.Track
	queuedID string
	queued   []session.Track
	hasQueue bool

	stutter  stutter
	lastStep int
	fired    []bool
}

func New(trigger Trigger) *Sequencer {
	return NewWithOptions(trigger, Options{})
}

func NewWithOptions(trigger Trigger, opts Options) *Sequencer {
	if opts.StepsPerBar <= 0 {
		opts.StepsPerBar = session.DefaultTimeSignature
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sequencer{
		trigger:     trigger,
		rng:         opts.Rand,
		stepsPerBar: opts.StepsPerBar,
	}
}

// SetTracks replaces the live track list. The sequencer keeps the slice; the
// caller must hand over a copy it no longer mutates.
func (s *Sequencer) SetTracks(tracks []session.Track) {
	s.tracks = tracks
}

func (s *Sequencer) Tracks() []session.Track { return s.tracks }

// SetStepsPerBar changes the bar length. Values below 1 are ignored.
func (s *Sequencer) SetStepsPerBar(n int) {
	if n > 0 {
		s.stepsPerBar = n
	}
}

// Queue schedules tracks to replace the live list at the next bar start.
// A later Queue before the boundary wins.
func (s *Sequencer) Queue(id string, tracks []session.Track) {
	s.queuedID, s.queued, s.hasQueue = id, tracks, true
}

// ClearQueue drops a pending changeover.
func (s *Sequencer) ClearQueue() {
	s.queuedID, s.queued, s.hasQueue = "", nil, false
}

func (s *Sequencer) QueuedID() (string, bool) { return s.queuedID, s.hasQueue }

// Engage starts a step repeat of interval steps anchored at the last played
// step. The interval is rounded to whole steps, at least one. Engaging while
// engaged changes the interval and keeps the anchor.
func (s *Sequencer) Engage(interval float64) {
	n := 1
	if r := math.Round(interval); r > 1 && !math.IsInf(r, 0) {
		n = int(r)
	}
	if s.stutter.engaged {
		s.stutter.interval = n
		return
	}
	s.stutter = stutter{engaged: true, interval: n, anchor: s.lastStep}
}

// Release ends the repeat. The next tick plays the natural step.
func (s *Sequencer) Release() { s.stutter = stutter{} }

func (s *Sequencer) Engaged() bool { return s.stutter.engaged }

// Reset clears stutter state. A queued pattern stays queued and takes over
// at the next tick 0.
func (s *Sequencer) Reset() {
	s.stutter = stutter{}
	s.lastStep = 0
}

// Step evaluates tick n.
func (s *Sequencer) Step(n int) Report {
	r := Report{Tick: n}
	if s.hasQueue && mod(n, s.stepsPerBar) == 0 {
		s.tracks = s.queued
		r.PatternChanged, r.PatternID = true, s.queuedID
		s.ClearQueue()
	}

	step := n
	if st := &s.stutter; st.engaged {
		step = st.anchor + mod(st.counter, st.interval)
		st.counter++
	}
	step = mod(step, s.stepsPerBar)
	s.lastStep = step
	r.Step = step

	if cap(s.fired) < len(s.tracks) {
		s.fired = make([]bool, len(s.tracks))
	}
	s.fired = s.fired[:len(s.tracks)]
	r.Fired = s.fired

	anySolo := false
	for i := range s.tracks {
		if s.tracks[i].Solo {
			anySolo = true
			break
		}
	}
	for i := range s.tracks {
		t := &s.tracks[i]
		s.fired[i] = false
		if t.Mute || (anySolo && !t.Solo) || len(t.Steps) == 0 {
			continue
		}
		st := t.StepAt(mod(step, len(t.Steps)))
		if !st.Active {
			continue
		}
		// Float64 is in [0,1): probability 1 always passes, 0 never does.
		if s.rng.Float64() >= st.Probability {
			continue
		}
		s.fired[i] = true
		if s.trigger != nil {
			s.trigger.Trigger(i, t, t.Params.Volume*st.Velocity)
		}
	}
	return r
}

func mod(a, b int) int {
	if b <= 0 {
		return 0
	}
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
