package effects

import "github.com/lyraflex/shadowcore/internal/dsp"

// EQ band centres.
const (
	EQLowFreq  = 320
	EQMidFreq  = 1000
	EQMidQ     = 0.5
	EQHighFreq = 3200
)

// EQ3Band is a low shelf, a wide peaking mid and a high shelf in series.
// Gains are in dB and glide to new values.
type EQ3Band struct {
	low, mid, high *Filter
}

func NewEQ3Band(sampleRate int, lowDB, midDB, highDB float64) *EQ3Band {
	return &EQ3Band{
		low:  NewFilter(dsp.Lowshelf, sampleRate, EQLowFreq, 1, lowDB, 100),
		mid:  NewFilter(dsp.Peaking, sampleRate, EQMidFreq, EQMidQ, midDB, 100),
		high: NewFilter(dsp.Highshelf, sampleRate, EQHighFreq, 1, highDB, 100),
	}
}

// SetGains sets the three band gains in dB.
func (eq *EQ3Band) SetGains(lowDB, midDB, highDB float64) {
	eq.low.SetGain(lowDB)
	eq.mid.SetGain(midDB)
	eq.high.SetGain(highDB)
}

func (eq *EQ3Band) Gains() (low, mid, high float64) {
	return eq.low.Gain(), eq.mid.Gain(), eq.high.Gain()
}

func (eq *EQ3Band) Process(l, r float32) (float32, float32) {
	l, r = eq.low.Process(l, r)
	l, r = eq.mid.Process(l, r)
	return eq.high.Process(l, r)
}

func (eq *EQ3Band) Reset() {
	eq.low.Reset()
	eq.mid.Reset()
	eq.high.Reset()
}
