package dsp

// Smoother moves linearly towards a target over a fixed number of frames.
// Every continuous control of the engine goes through one so that changes
// never jump between samples.
type Smoother struct {
	cur    float64
	target float64
	step   float64
	remain int
	frames int
}

func NewSmoother(v float64, frames int) Smoother {
	if frames < 1 {
		frames = 1
	}
	return Smoother{cur: v, target: v, frames: frames}
}

// SmoothingFrames converts a ramp time in milliseconds to frames.
func SmoothingFrames(sampleRate int, ms float64) int {
	n := int(float64(sampleRate) * ms / 1000)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Smoother) SetTarget(v float64) {
	if v == s.target && s.remain > 0 {
		return
	}
	s.target = v
	s.remain = s.frames
	s.step = (v - s.cur) / float64(s.frames)
}

// SetTargetOver is SetTarget with a one-off ramp length.
func (s *Smoother) SetTargetOver(v float64, frames int) {
	if frames < 1 {
		s.Set(v)
		return
	}
	s.target = v
	s.remain = frames
	s.step = (v - s.cur) / float64(frames)
}

// Set jumps to v without a ramp.
func (s *Smoother) Set(v float64) {
	s.cur, s.target, s.remain = v, v, 0
}

func (s *Smoother) Next() float64 {
	if s.remain > 0 {
		s.remain--
		if s.remain == 0 {
			s.cur = s.target
		} else {
			s.cur += s.step
		}
	}
	return s.cur
}

// Advance skips n frames of the ramp.
func (s *Smoother) Advance(n int) {
	if s.remain == 0 || n <= 0 {
		return
	}
	if n >= s.remain {
		s.cur, s.remain = s.target, 0
		return
	}
	s.cur += s.step * float64(n)
	s.remain -= n
}

func (s *Smoother) Value() float64  { return s.cur }
func (s *Smoother) Target() float64 { return s.target }
func (s *Smoother) Settled() bool   { return s.remain == 0 }
