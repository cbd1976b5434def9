package clock

import (
	"math"
	"math/rand"
	"testing"
)

// run drives the clock with host buffers of random size and records the
// frame of every tick.
func run(c *Clock, steps int, rng *rand.Rand) []int64 {
	ticks := make([]int64, 0, steps)
	for len(ticks) < steps {
		buf := 1 + rng.Intn(2048)
		for buf > 0 && len(ticks) < steps {
			for c.Due() {
				c.Tick()
				ticks = append(ticks, c.Now())
			}
			n := c.FramesUntilTick()
			if n > buf {
				n = buf
			}
			c.Advance(n)
			buf -= n
		}
	}
	return ticks[:steps]
}

func TestNoDriftOverTenThousandSteps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, bpm := range []float64{30, 60, 97.3, 120, 174, 200, 256.5, 300} {
		for _, sr := range []int{44100, 48000} {
			c := New(sr, bpm)
			ticks := run(c, 10000, rng)
			sps := SamplesPerStep(sr, bpm)
			for k, at := range ticks {
				ideal := float64(k) * sps
				if d := float64(at) - ideal; d < 0 || d >= 1 {
					t.Fatalf("bpm=%v sr=%d tick %d at %d, ideal %.3f", bpm, sr, k, at, ideal)
				}
			}
		}
	}
}

func TestTicksAreSequentialAndUnique(t *testing.T) {
	c := New(48000, 133)
	rng := rand.New(rand.NewSource(2))
	want := 0
	frames := 0
	for frames < 48000*20 {
		buf := 1 + rng.Intn(700)
		for buf > 0 {
			for c.Due() {
				if got := c.Tick(); got != want {
					t.Fatalf("tick %d, want %d", got, want)
				}
				want++
			}
			n := c.FramesUntilTick()
			if n > buf {
				n = buf
			}
			c.Advance(n)
			buf -= n
			frames += n
		}
	}
	if want == 0 {
		t.Fatalf("no ticks emitted")
	}
}

func TestSamplesPerStep(t *testing.T) {
	if got := SamplesPerStep(48000, 120); got != 6000 {
		t.Fatalf("SamplesPerStep(48000,120) = %v", got)
	}
	if got := SamplesPerStep(44100, 120); got != 5512.5 {
		t.Fatalf("SamplesPerStep(44100,120) = %v", got)
	}
}

func TestTempoChangeAppliesAtNextBoundary(t *testing.T) {
	c := New(48000, 120)
	c.Tick()
	c.SetBPM(240)
	// the step in flight keeps its length
	if n := c.FramesUntilTick(); n != 6000 {
		t.Fatalf("FramesUntilTick = %d, want 6000", n)
	}
	c.Advance(6000)
	c.Tick()
	if math.Abs(c.BPM()-240) > 1e-9 {
		t.Fatalf("bpm after ramp = %v", c.BPM())
	}
	if n := c.FramesUntilTick(); n != 3000 {
		t.Fatalf("FramesUntilTick after change = %d, want 3000", n)
	}
}

func TestResetRestartsAtZero(t *testing.T) {
	c := New(48000, 120)
	c.Tick()
	c.Advance(1234)
	c.Reset()
	if !c.Due() {
		t.Fatalf("tick not due after reset")
	}
	if got := c.Tick(); got != 0 {
		t.Fatalf("first tick after reset = %d", got)
	}
	if n := c.FramesUntilTick(); n != 6000 {
		t.Fatalf("FramesUntilTick = %d", n)
	}
}

func TestSetBPMIgnoresInvalid(t *testing.T) {
	c := New(48000, 120)
	c.SetBPM(0)
	c.SetBPM(-3)
	c.SetBPM(math.NaN())
	c.Advance(48000)
	if c.BPM() != 120 {
		t.Fatalf("bpm = %v", c.BPM())
	}
}
