package playback

import (
	"sync"

	"github.com/MrWong99/quizhost/pkg/audio"
)

// Source is one buffer scheduled on a [Context].
type Source struct {
	ctx    *Context
	buf    *audio.Buffer
	start  int64
	frames int64

	// stopped is guarded by ctx.mu.
	stopped bool

	onEnded   func(*Source)
	endedOnce sync.Once
	ended     chan struct{}
}

// StartFrame returns the frame at which the first sample plays.
func (s *Source) StartFrame() int64 { return s.start }

// Frames returns the buffer length in frames.
func (s *Source) Frames() int64 { return s.frames }

// Start returns the start time in seconds on the context clock.
func (s *Source) Start() float64 { return float64(s.start) / float64(s.ctx.rate) }

// Duration returns the buffer length in seconds at the context rate.
func (s *Source) Duration() float64 { return float64(s.frames) / float64(s.ctx.rate) }

// Stop silences the source immediately. No sample of a stopped source is
// rendered after Stop returns. Stop is idempotent and fires the end callback
// if the source had not ended yet.
func (s *Source) Stop() {
	s.ctx.mu.Lock()
	if s.stopped {
		s.ctx.mu.Unlock()
		return
	}
	s.stopped = true
	s.ctx.removeLocked(s)
	s.ctx.mu.Unlock()

	s.fireEnded()
}

// Done returns a channel closed once the source has ended or been stopped.
func (s *Source) Done() <-chan struct{} { return s.ended }

func (s *Source) fireEnded() {
	s.endedOnce.Do(func() {
		if s.onEnded != nil {
			s.onEnded(s)
		}
		close(s.ended)
	})
}

func (s *Source) end() int64 { return s.start + s.frames }

// mixInto adds the part of the source overlapping [from, to) to out. Multi
// channel buffers are averaged down to mono. Caller holds ctx.mu.
func (s *Source) mixInto(out []float32, from, to int64) {
	if s.stopped || s.buf == nil || s.frames == 0 {
		return
	}
	lo := max(from, s.start)
	hi := min(to, s.end())
	if lo >= hi {
		return
	}
	ch := s.buf.Channels
	scale := float32(1)
	if ch > 1 {
		scale = 1 / float32(ch)
	}
	for f := lo; f < hi; f++ {
		var v float32
		for c := range ch {
			v += s.buf.Data[c][f-s.start]
		}
		out[f-from] += v * scale
	}
}
