package playback

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/quizhost/pkg/audio"
)

// DefaultTimeConstant is the smoothing time constant, in seconds, applied to
// volume changes made through [Scheduler.SetGain].
const DefaultTimeConstant = 0.1

// Scheduled describes where a fragment landed on the timeline.
type Scheduled struct {
	// Start is the start time in seconds on the context clock.
	Start float64

	// StartFrame is Start expressed in frames.
	StartFrame int64

	// Duration is the fragment length in seconds.
	Duration float64
}

// End returns Start + Duration.
func (s Scheduled) End() float64 { return s.Start + s.Duration }

// Option is a functional option for configuring a [Scheduler].
type Option func(*Scheduler)

// WithTimeConstant overrides [DefaultTimeConstant].
func WithTimeConstant(tau float64) Option {
	return func(s *Scheduler) { s.tau = tau }
}

// WithOnSchedule registers fn to be called after every fragment is placed.
func WithOnSchedule(fn func(Scheduled)) Option {
	return func(s *Scheduler) { s.onSchedule = fn }
}

// WithOnInterrupt registers fn to be called after every interrupt with the
// number of sources that were stopped.
func WithOnInterrupt(fn func(stopped int)) Option {
	return func(s *Scheduler) { s.onInterrupt = fn }
}

// Scheduler places decoded fragments back to back on a [Context] timeline.
//
// Fragments play in the order Enqueue was called with no gap and no overlap
// between them, as long as Interrupt is not called in between. Interrupt
// stops everything in flight and the next fragment starts at the current
// output time.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	ctx *Context
	tau float64

	onSchedule  func(Scheduled)
	onInterrupt func(int)

	mu     sync.Mutex
	cursor int64 // end of the last scheduled fragment, in frames
	closed bool

	// activeMu guards active. Source end callbacks take only this lock.
	activeMu sync.Mutex
	active   []*Source
}

// NewScheduler creates a Scheduler on ctx.
func NewScheduler(ctx *Context, opts ...Option) *Scheduler {
	s := &Scheduler{
		ctx: ctx,
		tau: DefaultTimeConstant,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Context returns the underlying output context.
func (s *Scheduler) Context() *Context { return s.ctx }

// Enqueue decodes little-endian 16-bit mono PCM at the context rate and
// schedules it at max(cursor, now). The cursor then advances by the fragment
// duration. An empty payload schedules nothing and leaves the cursor alone.
func (s *Scheduler) Enqueue(pcm []byte) (Scheduled, error) {
	buf := audio.DecodeToBuffer(pcm, s.ctx.SampleRate(), 1)
	return s.EnqueueBuffer(buf)
}

// EnqueueBase64 decodes a base64 payload from the real-time channel and
// passes it to [Scheduler.Enqueue].
func (s *Scheduler) EnqueueBase64(data string) (Scheduled, error) {
	pcm, err := audio.DecodeBase64(data)
	if err != nil {
		return Scheduled{}, fmt.Errorf("playback: enqueue: %w", err)
	}
	return s.Enqueue(pcm)
}

// EnqueueBuffer schedules an already decoded buffer.
func (s *Scheduler) EnqueueBuffer(buf *audio.Buffer) (Scheduled, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Scheduled{}, ErrClosed
	}

	rate := float64(s.ctx.SampleRate())
	frames := int64(buf.Frames())
	if frames == 0 {
		at := s.cursor
		s.mu.Unlock()
		return Scheduled{Start: float64(at) / rate, StartFrame: at}, nil
	}

	start := max(s.cursor, s.ctx.NowFrame())
	src, err := s.ctx.Schedule(buf, start, s.remove)
	if err != nil {
		s.mu.Unlock()
		return Scheduled{}, fmt.Errorf("playback: enqueue: %w", err)
	}
	s.activeMu.Lock()
	s.active = append(s.active, src)
	s.activeMu.Unlock()

	// Schedule clamps to the context clock, which may have moved.
	start = src.StartFrame()
	s.cursor = start + frames
	s.mu.Unlock()

	sc := Scheduled{
		Start:      float64(start) / rate,
		StartFrame: start,
		Duration:   float64(frames) / rate,
	}
	if s.onSchedule != nil {
		s.onSchedule(sc)
	}
	return sc, nil
}

// Interrupt stops every active source, clears the active set and resets the
// cursor to 0. Once Interrupt returns no sample of a stopped fragment reaches
// the output. It returns the number of sources stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	s.activeMu.Lock()
	stopping := s.active
	s.active = nil
	s.activeMu.Unlock()

	for _, src := range stopping {
		src.Stop()
	}
	s.cursor = 0
	s.mu.Unlock()

	if len(stopping) > 0 {
		slog.Debug("playback: interrupted", "stopped", len(stopping))
	}
	if s.onInterrupt != nil {
		s.onInterrupt(len(stopping))
	}
	return len(stopping)
}

// SetGain smoothly moves the gain stage towards level starting now.
func (s *Scheduler) SetGain(level float64) {
	s.ctx.Gain().SetTargetAtTime(level, s.ctx.Now(), s.tau)
}

// Gain returns the current gain value.
func (s *Scheduler) Gain() float64 { return s.ctx.Gain().Value() }

// Active returns the number of fragments scheduled or playing.
func (s *Scheduler) Active() int {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return len(s.active)
}

// Cursor returns the end of the last scheduled fragment in seconds.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.cursor) / float64(s.ctx.SampleRate())
}

// Close interrupts playback and rejects further fragments. The context is
// left open; its owner closes it. Close is idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.Interrupt()
	return nil
}

// remove drops src from the active set. Safe to call more than once.
func (s *Scheduler) remove(src *Source) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	for i, x := range s.active {
		if x == src {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}
