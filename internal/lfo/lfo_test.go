package lfo

import (
	"math"
	"testing"
)

func TestTriangleShape(t *testing.T) {
	l := New(Triangle, 1, 1)
	sr := 100.0
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(sr)
	}
	if math.Abs(samples[0]+1) > 0.05 {
		t.Errorf("triangle at phase 0: got %f, want -1", samples[0])
	}
	if math.Abs(samples[25]) > 0.05 {
		t.Errorf("triangle at phase 0.25: got %f, want 0", samples[25])
	}
	if math.Abs(samples[50]-1) > 0.05 {
		t.Errorf("triangle at phase 0.5: got %f, want 1", samples[50])
	}
}

func TestSineDepth(t *testing.T) {
	l := New(Sine, 5, 0.3)
	peak := 0.0
	for i := 0; i < 48000; i++ {
		peak = math.Max(peak, math.Abs(l.Sample(48000)))
	}
	if math.Abs(peak-0.3) > 0.001 {
		t.Errorf("sine peak %f, want 0.3", peak)
	}
}

func TestSampleHoldHoldsPerCycle(t *testing.T) {
	l := New(SampleHold, 8, 1)
	l.Seed(7, 0)
	sr := 1024.0
	first := l.Sample(sr)
	for i := 1; i < 128; i++ {
		if v := l.Sample(sr); v != first {
			t.Fatalf("value changed within a cycle at %d", i)
		}
	}
	if v := l.Sample(sr); v == first {
		t.Fatalf("value did not change at cycle boundary")
	}
	if first < -1 || first >= 1 {
		t.Fatalf("held value %f out of range", first)
	}
}

func TestInactiveReturnsZero(t *testing.T) {
	l := New(Square, 0, 1)
	if l.Active() || l.Sample(48000) != 0 {
		t.Fatalf("zero-rate LFO should be inactive")
	}
}
