// Package playback schedules decoded speech fragments onto a shared output
// timeline and renders them through a single gain stage.
//
// A [Context] owns a software sample clock. The clock only advances when
// [Context.Render] is called, which a speaker backend does from its pull
// callback, so tests can drive time deterministically. A [Scheduler] sits on
// top of a Context and places fragments back to back in arrival order, with
// support for hard interruption.
//
// Lock order: Scheduler.mu, then Context.mu, then Gain.mu. Callbacks
// registered with sources always run with no lock held.
package playback

import (
	"errors"
	"sync"

	"github.com/MrWong99/quizhost/pkg/audio"
)

// ErrClosed is returned when scheduling on a closed [Context] or [Scheduler].
var ErrClosed = errors.New("playback: closed")

// Context is a mono output context with its own sample clock.
//
// All methods are safe for concurrent use.
type Context struct {
	rate int
	gain *Gain

	mu      sync.Mutex
	frame   int64
	sources []*Source
	closed  bool
}

// NewContext creates a Context rendering at sampleRate with the gain stage
// starting at initialGain.
func NewContext(sampleRate int, initialGain float64) *Context {
	if sampleRate <= 0 {
		sampleRate = audio.OutputSampleRate
	}
	return &Context{
		rate: sampleRate,
		gain: newGain(sampleRate, initialGain),
	}
}

// SampleRate returns the rendering rate in Hz.
func (c *Context) SampleRate() int { return c.rate }

// Gain returns the shared gain stage every source is rendered through.
func (c *Context) Gain() *Gain { return c.gain }

// Now returns the output clock in seconds.
func (c *Context) Now() float64 {
	return float64(c.NowFrame()) / float64(c.rate)
}

// NowFrame returns the number of frames rendered so far.
func (c *Context) NowFrame() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Active returns the number of sources that have not yet ended.
func (c *Context) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

// Render fills out with the next len(out) mono samples and advances the
// clock by the same amount. Sources whose last sample has been rendered end
// and their callbacks fire before Render returns. A closed context renders
// silence and does not advance.
func (c *Context) Render(out []float32) {
	clear(out)
	if len(out) == 0 {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	from := c.frame
	to := from + int64(len(out))

	var ended []*Source
	kept := c.sources[:0]
	for _, s := range c.sources {
		s.mixInto(out, from, to)
		if s.end() <= to {
			ended = append(ended, s)
			continue
		}
		kept = append(kept, s)
	}
	clear(c.sources[len(kept):])
	c.sources = kept

	c.gain.apply(out, from)
	c.frame = to
	c.mu.Unlock()

	for _, s := range ended {
		s.fireEnded()
	}
}

// Schedule plays buf starting at frame startFrame. onEnded, if non-nil, runs
// exactly once when the source finishes naturally or is stopped. A start in
// the past is clamped to the current frame.
func (c *Context) Schedule(buf *audio.Buffer, startFrame int64, onEnded func(*Source)) (*Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	startFrame = max(startFrame, c.frame)
	s := &Source{
		ctx:     c,
		buf:     buf,
		start:   startFrame,
		frames:  int64(buf.Frames()),
		onEnded: onEnded,
		ended:   make(chan struct{}),
	}
	c.sources = append(c.sources, s)
	return s, nil
}

// Close stops every source and makes further scheduling fail. Stopped
// sources fire their end callbacks. Close is idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stopped := c.sources
	c.sources = nil
	for _, s := range stopped {
		s.stopped = true
	}
	c.mu.Unlock()

	for _, s := range stopped {
		s.fireEnded()
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// removeLocked drops s from the source list. Caller holds c.mu.
func (c *Context) removeLocked(s *Source) bool {
	for i, x := range c.sources {
		if x == s {
			c.sources = append(c.sources[:i], c.sources[i+1:]...)
			return true
		}
	}
	return false
}
