package effects

import (
	"math"

	"github.com/lyraflex/shadowcore/internal/dsp"
)

// CrushCurveSize is the length of the crusher transfer table.
const CrushCurveSize = 44100

// CrushFunc returns the crusher transfer function for amount in [0, 1]:
// identity at zero, quantized to 4+(1-amount)*100 levels above it, and
// saturated with k = amount*100 once amount exceeds 0.1.
func CrushFunc(amount float64) func(float64) float64 {
	amount = clamp(amount, 0, 1)
	if amount == 0 {
		return func(x float64) float64 { return x }
	}
	steps := 4 + (1-amount)*100
	sat := dsp.Saturate(amount * 100)
	return func(x float64) float64 {
		x = math.Round(x*steps) / steps
		if amount > 0.1 {
			return sat(x)
		}
		return x
	}
}

// Crusher is the bit-reduction waveshaper. The table is regenerated whenever
// the amount changes. Like any waveshaper it clips input outside [-1, 1].
type Crusher struct {
	amount float64
	curve  dsp.Curve
}

func NewCrusher() *Crusher {
	return &Crusher{curve: dsp.MakeCurve(CrushCurveSize, CrushFunc(0))}
}

func (c *Crusher) SetAmount(amount float64) {
	amount = clamp(amount, 0, 1)
	if amount == c.amount {
		return
	}
	c.amount = amount
	dsp.FillCurve(c.curve, CrushFunc(amount))
}

func (c *Crusher) Amount() float64 { return c.amount }

func (c *Crusher) Process(l, r float32) (float32, float32) {
	if c.amount == 0 {
		return clamp32(l), clamp32(r)
	}
	return float32(c.curve.Apply(float64(l))), float32(c.curve.Apply(float64(r)))
}

func (c *Crusher) Reset() {}

func clamp32(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
