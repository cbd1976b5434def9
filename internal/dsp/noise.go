package dsp

import (
	"math"
	"math/rand"
)

const noiseLen = 1 << 17

// white is the shared noise table. It is generated once from a fixed seed so
// renders are reproducible.
var white = func() []float32 {
	r := rand.New(rand.NewSource(0x5eed))
	t := make([]float32, noiseLen)
	for i := range t {
		t[i] = float32(r.Float64()*2 - 1)
	}
	return t
}()

// Noise reads the shared white-noise table at a variable rate.
type Noise struct {
	pos  float64
	rate float64
}

// NewNoise starts reading at offset with the given playback rate.
func NewNoise(offset int, rate float64) Noise {
	if rate <= 0 {
		rate = 1
	}
	return Noise{pos: float64(offset & (noiseLen - 1)), rate: rate}
}

func (n *Noise) Next() float64 {
	i := int(n.pos)
	frac := n.pos - float64(i)
	a := float64(white[i&(noiseLen-1)])
	b := float64(white[(i+1)&(noiseLen-1)])
	n.pos += n.rate
	if n.pos >= noiseLen {
		n.pos -= math.Floor(n.pos/noiseLen) * noiseLen
	}
	return a + (b-a)*frac
}
