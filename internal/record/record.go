// Package record captures the summed engine output to a 16-bit PCM WAV file.
package record

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/lyraflex/shadowcore/internal/notify"
)

// queueDepth is the number of render buffers that may wait for the disk.
const queueDepth = 64

// Recorder receives interleaved stereo buffers through Tap and encodes them
// on its own goroutine.
type Recorder struct {
	enc    *wav.Encoder
	closer io.Closer
	logger *log.Logger
	q      *notify.Queue[*[]float32]
	pool   sync.Pool
	buf    audio.IntBuffer
	frames atomic.Int64

	mu  sync.Mutex
	err error
}

// FileName returns a timestamped recording path inside dir.
func FileName(dir string, t time.Time) string {
	return filepath.Join(dir, "shadowcore-"+t.Format("20060102-150405")+".wav")
}

// Create opens path and records into it.
func Create(path string, sampleRate int, logger *log.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	r := New(f, sampleRate, logger)
	r.closer = f
	return r, nil
}

// New records into w. The header is finalized by Close.
func New(w io.WriteSeeker, sampleRate int, logger *log.Logger) *Recorder {
	r := &Recorder{
		enc:    wav.NewEncoder(w, sampleRate, 16, 2, 1),
		logger: logger,
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
	r.q = notify.New(queueDepth, r.write)
	return r
}

// Tap copies samples for encoding. It never blocks; buffers arriving while
// the queue is full are lost and counted by Dropped.
func (r *Recorder) Tap(samples []float32) {
	p, _ := r.pool.Get().(*[]float32)
	if p == nil {
		p = new([]float32)
	}
	*p = append((*p)[:0], samples...)
	if !r.q.Post(p) {
		r.pool.Put(p)
	}
}

func (r *Recorder) write(p *[]float32) {
	defer r.pool.Put(p)
	s := *p
	if cap(r.buf.Data) < len(s) {
		r.buf.Data = make([]int, len(s))
	}
	r.buf.Data = r.buf.Data[:len(s)]
	for i, v := range s {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		r.buf.Data[i] = int(v * 32767)
	}
	if err := r.enc.Write(&r.buf); err != nil {
		r.mu.Lock()
		if r.err == nil {
			r.err = err
			r.logger.Printf("record: %v", err)
		}
		r.mu.Unlock()
		return
	}
	r.frames.Add(int64(len(s) / 2))
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 { return r.frames.Load() }

// Dropped returns the number of buffers lost to a full queue.
func (r *Recorder) Dropped() uint64 { return r.q.Dropped() }

// Close flushes pending buffers, finalizes the WAV header and closes the
// file opened by Create. It returns the first write error, if any.
func (r *Recorder) Close() error {
	r.q.Close()
	err := r.enc.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
		r.closer = nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return fmt.Errorf("record: %w", r.err)
	}
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}
