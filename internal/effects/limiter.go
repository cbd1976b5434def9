package effects

import "math"

// Limiter is a fast, high-ratio compressor with a stereo-linked detector.
type Limiter struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	env       float32
}

// NewLimiter creates a limiter.
// thresholdDB: level above which gain is reduced (e.g., -1)
// ratio: reduction ratio (e.g., 20 for 20:1)
// attackMs, releaseMs: detector times in ms
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
	}
}

// NewMasterLimiter is the output stage: -1 dB, 20:1, 1 ms attack, 100 ms release.
func NewMasterLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -1, 20, 1, 100)
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain(c.env)
	return l * g, r * g
}

// GainReduction returns the current gain factor in (0, 1].
func (c *Limiter) GainReduction() float32 { return c.gain(c.env) }

func (c *Limiter) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Limiter) Reset() { c.env = 0 }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
