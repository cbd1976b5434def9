package effects

import (
	"math"
	"math/rand"

	"github.com/maddyblue/go-dsp/fft"
)

const (
	// ReverbSeconds is the length of the generated impulse response.
	ReverbSeconds = 2.5
	// ReverbDecay is the exponent of the impulse envelope (1-n/len)^decay.
	ReverbDecay = 2.0

	reverbBlock = 512

	// level normalisation of impulse responses, as browsers apply to
	// convolvers by default
	irCalibration = 0.00125
	irMinPower    = 0.000125
)

// ImpulseResponse generates a stereo noise impulse of seconds length whose
// envelope falls as (1-n/len)^decay. Left and right are independent.
func ImpulseResponse(sampleRate int, seconds, decay float64, rng *rand.Rand) (l, r []float64) {
	n := int(float64(sampleRate) * seconds)
	if n < 1 {
		n = 1
	}
	l, r = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		e := math.Pow(1-float64(i)/float64(n), decay)
		l[i] = (rng.Float64()*2 - 1) * e
		r[i] = (rng.Float64()*2 - 1) * e
	}
	return l, r
}

// Reverb convolves its input with a stereo impulse response using uniformly
// partitioned overlap-save FFT convolution. Output is wet only and lags the
// input by one block.
type Reverb struct {
	parts [2][][]complex128 // impulse partition spectra per channel
	hist  [2][][]complex128 // input spectra ring, newest at head
	head  int
	in    [2][]float64 // previous and current block
	out   [2][]float64
	acc   []complex128
	fill  int
}

// NewReverb builds the default room: a 2.5 s generated impulse.
func NewReverb(sampleRate int, rng *rand.Rand) *Reverb {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	l, r := ImpulseResponse(sampleRate, ReverbSeconds, ReverbDecay, rng)
	Normalize(l, r)
	return NewConvolver(l, r)
}

// Normalize scales a stereo impulse response so that its RMS power maps to a
// fixed calibration level.
func Normalize(l, r []float64) {
	var p float64
	for _, v := range l {
		p += v * v
	}
	for _, v := range r {
		p += v * v
	}
	n := len(l) + len(r)
	if n == 0 {
		return
	}
	p = math.Max(math.Sqrt(p/float64(n)), irMinPower)
	g := irCalibration / p
	for i := range l {
		l[i] *= g
	}
	for i := range r {
		r[i] *= g
	}
}

// NewConvolver convolves with the given impulse responses.
func NewConvolver(irL, irR []float64) *Reverb {
	const b = reverbBlock
	rv := &Reverb{acc: make([]complex128, 2*b)}
	for ch, ir := range [2][]float64{irL, irR} {
		n := (len(ir) + b - 1) / b
		if n == 0 {
			n = 1
		}
		rv.parts[ch] = make([][]complex128, n)
		rv.hist[ch] = make([][]complex128, n)
		for p := 0; p < n; p++ {
			seg := make([]float64, 2*b)
			lo := p * b
			hi := min(lo+b, len(ir))
			if lo < hi {
				copy(seg, ir[lo:hi])
			}
			rv.parts[ch][p] = fft.FFTReal(seg)
			rv.hist[ch][p] = make([]complex128, 2*b)
		}
		rv.in[ch] = make([]float64, 2*b)
		rv.out[ch] = make([]float64, b)
	}
	return rv
}

func (rv *Reverb) Process(l, r float32) (float32, float32) {
	const b = reverbBlock
	i := rv.fill
	ol, or := rv.out[0][i], rv.out[1][i]
	rv.in[0][b+i] = float64(l)
	rv.in[1][b+i] = float64(r)
	rv.fill++
	if rv.fill == b {
		rv.fill = 0
		rv.block()
	}
	return float32(ol), float32(or)
}

func (rv *Reverb) block() {
	const b = reverbBlock
	n := len(rv.hist[0])
	rv.head = (rv.head + n - 1) % n
	for ch := range rv.in {
		rv.hist[ch][rv.head] = fft.FFTReal(rv.in[ch])
		for k := range rv.acc {
			rv.acc[k] = 0
		}
		for p, h := range rv.parts[ch] {
			x := rv.hist[ch][(rv.head+p)%n]
			for k := range rv.acc {
				rv.acc[k] += x[k] * h[k]
			}
		}
		y := fft.IFFT(rv.acc)
		for k := 0; k < b; k++ {
			rv.out[ch][k] = real(y[b+k])
		}
		copy(rv.in[ch][:b], rv.in[ch][b:])
	}
}

// Span is the number of frames after which silent input yields silent output.
func (rv *Reverb) Span() int { return (len(rv.parts[0]) + 1) * reverbBlock }

func (rv *Reverb) Reset() {
	for ch := range rv.in {
		for i := range rv.in[ch] {
			rv.in[ch][i] = 0
		}
		for i := range rv.out[ch] {
			rv.out[ch][i] = 0
		}
		for _, x := range rv.hist[ch] {
			for k := range x {
				x[k] = 0
			}
		}
	}
	rv.fill = 0
}
