package shadowcore

import (
	"bytes"
	"encoding/binary"
	"io"
	"log"
	"math/rand"

	"github.com/lyraflex/shadowcore/internal/session"
)

// renderBlock is the buffer size used by offline renders, in frames.
const renderBlock = 512

// RenderSession plays s from step 0 for the given duration and returns the
// interleaved stereo output. The same seed yields the same samples.
func RenderSession(s *session.Session, sampleRate int, seconds float64, seed int64) ([]float32, error) {
	if s == nil {
		s = session.Default()
	}
	e, err := New(sampleRate,
		WithRandomSource(rand.New(rand.NewSource(seed))),
		WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		return nil, err
	}
	defer e.Close()
	st := NewStudio(e, s.Clone(), WithEditRandom(rand.New(rand.NewSource(seed))))
	if err := st.Play(); err != nil {
		return nil, err
	}
	return renderFrames(e, int(float64(sampleRate)*seconds)), nil
}

func renderFrames(e *Engine, frames int) []float32 {
	out := make([]float32, frames*2)
	for off := 0; off < frames; off += renderBlock {
		end := min(off+renderBlock, frames)
		e.Process(out[2*off : 2*end])
	}
	return out
}

// wavHeader is the 44-byte header of a canonical IEEE float WAV file.
type wavHeader struct {
	RIFF       [4]byte
	ChunkSize  uint32
	WAVE       [4]byte
	Fmt        [4]byte
	FmtSize    uint32
	Format     uint16
	Channels   uint16
	SampleRate uint32
	ByteRate   uint32
	BlockAlign uint16
	Bits       uint16
	Data       [4]byte
	DataSize   uint32
}

const wavFormatFloat = 3

// EncodeWAVFloat32LE wraps interleaved samples in a 32-bit float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	size := len(samples) * 4
	h := wavHeader{
		RIFF:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:  uint32(36 + size),
		WAVE:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     wavFormatFloat,
		Channels:   uint16(channels),
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * channels * 4),
		BlockAlign: uint16(channels * 4),
		Bits:       32,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   uint32(size),
	}
	var buf bytes.Buffer
	buf.Grow(44 + size)
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, h)
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
