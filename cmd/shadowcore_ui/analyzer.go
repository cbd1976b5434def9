package main

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/maddyblue/go-dsp/fft"
)

const (
	fftSize    = 2048
	ringBufLen = 65536
)

// analyzer keeps the most recent output, mixed to mono, for the scope.
type analyzer struct {
	mu         sync.Mutex
	sampleRate int
	ring       []float32
	writePos   int

	window []float64
	frame  []float64
	bins   []float64
}

func newAnalyzer(sampleRate int) *analyzer {
	a := &analyzer{
		sampleRate: sampleRate,
		ring:       make([]float32, ringBufLen),
		window:     make([]float64, fftSize),
		frame:      make([]float64, fftSize),
	}
	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return a
}

// Tap runs on the audio goroutine.
func (a *analyzer) Tap(samples []float32) {
	a.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		a.ring[a.writePos] = (samples[i] + samples[i+1]) * 0.5
		a.writePos = (a.writePos + 1) % ringBufLen
	}
	a.mu.Unlock()
}

// Snapshot copies the latest n samples, oldest first.
func (a *analyzer) Snapshot(n int) []float32 {
	n = min(n, ringBufLen)
	out := make([]float32, n)
	a.mu.Lock()
	start := (a.writePos - n + ringBufLen) % ringBufLen
	for i := range out {
		out[i] = a.ring[(start+i)%ringBufLen]
	}
	a.mu.Unlock()
	return out
}

// Spectrum reduces the last fftSize samples to numBars log-spaced levels in
// [0, 1], smoothed against the previous call.
func (a *analyzer) Spectrum(samples []float32, numBars int) []float64 {
	if len(samples) < fftSize || numBars <= 0 {
		return nil
	}
	off := len(samples) - fftSize
	for i := range a.frame {
		a.frame[i] = float64(samples[off+i]) * a.window[i]
	}
	spec := fft.FFTReal(a.frame)
	if len(a.bins) != numBars {
		a.bins = make([]float64, numBars)
	}

	half := fftSize / 2
	maxBin := min(half, half*18000/(a.sampleRate/2))
	logMin, logMax := 0.0, math.Log(float64(maxBin))
	for i := range a.bins {
		lo := int(math.Exp(logMin + float64(i)/float64(numBars)*(logMax-logMin)))
		hi := int(math.Exp(logMin + float64(i+1)/float64(numBars)*(logMax-logMin)))
		hi = min(max(hi, lo+1), half)
		sum := 0.0
		for b := lo; b < hi; b++ {
			sum += cmplx.Abs(spec[b])
		}
		db := 20 * math.Log10(sum/float64(hi-lo)/fftSize+1e-10)
		norm := clamp((db+80)/80, 0, 1)
		if prev := a.bins[i]; norm > prev {
			a.bins[i] = prev*0.3 + norm*0.7
		} else {
			a.bins[i] = prev*0.85 + norm*0.15
		}
	}
	return a.bins
}

// findZeroCrossing finds a rising zero crossing to hold the waveform still.
func findZeroCrossing(samples []float32, searchLen int) int {
	searchLen = min(searchLen, len(samples)-2)
	for i := 1; i < searchLen; i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}
