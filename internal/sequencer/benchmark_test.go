package sequencer

import (
	"math/rand"
	"testing"

	"github.com/lyraflex/shadowcore/internal/session"
)

type nopTrigger struct{}

func (nopTrigger) Trigger(int, *session.Track, float64) {}

func BenchmarkStepFactoryPattern(b *testing.B) {
	s := NewWithOptions(nopTrigger{}, Options{Rand: rand.New(rand.NewSource(1))})
	s.SetTracks(session.ActiveTracks(session.Default()))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Step(i)
	}
}
