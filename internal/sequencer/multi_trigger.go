package sequencer

import "github.com/lyraflex/shadowcore/internal/session"

// MultiTrigger routes every firing to a list of triggers in registration
// order. It is configured before playback starts and is not safe for
// concurrent modification.
type MultiTrigger struct {
	triggers []Trigger
}

func NewMultiTrigger(triggers ...Trigger) *MultiTrigger {
	m := &MultiTrigger{}
	for _, t := range triggers {
		m.Add(t)
	}
	return m
}

// Add registers a trigger. Nil triggers are ignored.
func (m *MultiTrigger) Add(t Trigger) {
	if t == nil {
		return
	}
	m.triggers = append(m.triggers, t)
}

func (m *MultiTrigger) Len() int { return len(m.triggers) }

func (m *MultiTrigger) Trigger(track int, t *session.Track, volume float64) {
	for _, tr := range m.triggers {
		tr.Trigger(track, t, volume)
	}
}
