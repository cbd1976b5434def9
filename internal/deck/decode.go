package deck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// ErrDecode is returned when imported audio cannot be decoded. Decode
// returns no buffer with it, and Engine.LoadSample leaves the deck empty.
var ErrDecode = errors.New("deck: cannot decode audio")

// Buffer is decoded stereo audio at the engine sample rate.
type Buffer struct {
	SampleRate int
	L, R       []float32
}

func (b *Buffer) Frames() int { return len(b.L) }

// Duration in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.L)) / float64(b.SampleRate)
}

type format int

const (
	formatUnknown format = iota
	formatWAV
	formatOgg
	formatMP3
)

func sniff(data []byte) format {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return formatWAV
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return formatOgg
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return formatMP3
	case len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		return formatMP3
	}
	return formatUnknown
}

// Decode reads a whole WAV, Ogg Vorbis or MP3 file and resamples it to
// sampleRate.
func Decode(r io.Reader, sampleRate int) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	src := bytes.NewReader(data)
	var stream io.Reader
	switch sniff(data) {
	case formatWAV:
		stream, err = wav.DecodeWithSampleRate(sampleRate, src)
	case formatOgg:
		stream, err = vorbis.DecodeWithSampleRate(sampleRate, src)
	case formatMP3:
		stream, err = mp3.DecodeWithSampleRate(sampleRate, src)
	default:
		return nil, fmt.Errorf("%w: unrecognised format", ErrDecode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	frames := len(pcm) / 4
	if frames == 0 {
		return nil, fmt.Errorf("%w: no audio frames", ErrDecode)
	}
	b := &Buffer{
		SampleRate: sampleRate,
		L:          make([]float32, frames),
		R:          make([]float32, frames),
	}
	// 16-bit little endian interleaved stereo
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[4*i:]))
		r := int16(binary.LittleEndian.Uint16(pcm[4*i+2:]))
		b.L[i] = float32(l) / math.MaxInt16
		b.R[i] = float32(r) / math.MaxInt16
	}
	return b, nil
}
