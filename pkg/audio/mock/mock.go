// Package mock provides in-memory stand-ins for audio hardware so capture and
// playback can be exercised in unit tests without a sound card.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts, and they expose exported fields that the
// test can set to control return values.
//
// Typical usage:
//
//	mic := &mock.Microphone{}
//	p := capture.New(mic, sink)
//	_ = p.Start()
//	mic.Emit(make([]float32, audio.FrameSize))
package mock

import (
	"io"
	"sync"
	"time"

	"github.com/MrWong99/quizhost/pkg/audio/playback"
)

// ─── Microphone ───────────────────────────────────────────────────────────────

// Microphone is a mock capture source. Frames are injected with [Microphone.Emit].
type Microphone struct {
	mu sync.Mutex

	// StartError is returned by Start when non-nil.
	StartError error

	// CloseError is returned by Close.
	CloseError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	onFrame func([]float32)
}

// Start implements capture.Source.
func (m *Microphone) Start(onFrame func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountStart++
	if m.StartError != nil {
		return m.StartError
	}
	m.onFrame = onFrame
	return nil
}

// Emit delivers one frame to the registered callback, synchronously, the way
// a driver callback would. It is a no-op before Start or after Close.
func (m *Microphone) Emit(samples []float32) {
	m.mu.Lock()
	cb := m.onFrame
	m.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

// Started reports whether Start succeeded and Close has not been called.
func (m *Microphone) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onFrame != nil
}

// Close implements capture.Source.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountClose++
	m.onFrame = nil
	return m.CloseError
}

// Closes returns CallCountClose under the lock.
func (m *Microphone) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCountClose
}

// ─── Speaker ──────────────────────────────────────────────────────────────────

// Speaker is a mock playback sink. Opened contexts are recorded but never
// rendered automatically; tests drive the clock with [playback.Context.Render]
// or [Speaker.Pump].
type Speaker struct {
	mu sync.Mutex

	// OpenError is returned by Open when non-nil.
	OpenError error

	// Delay is reported by Latency. Zero means no buffering.
	Delay time.Duration

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// CallCountClose records how many returned closers were closed.
	CallCountClose int

	// Contexts holds every context passed to Open, in order.
	Contexts []*playback.Context
}

// Open implements playback.Sink.
func (s *Speaker) Open(c *playback.Context) (io.Closer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountOpen++
	if s.OpenError != nil {
		return nil, s.OpenError
	}
	s.Contexts = append(s.Contexts, c)
	return &speakerHandle{s: s}, nil
}

// Latency implements playback.LatencyReporter.
func (s *Speaker) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Delay
}

// Pump renders frames of silence-padded output from the most recently opened
// context, advancing its clock. Returns the rendered samples.
func (s *Speaker) Pump(frames int) []float32 {
	s.mu.Lock()
	if len(s.Contexts) == 0 {
		s.mu.Unlock()
		return nil
	}
	c := s.Contexts[len(s.Contexts)-1]
	s.mu.Unlock()
	out := make([]float32, frames)
	c.Render(out)
	return out
}

// Closes returns CallCountClose under the lock.
func (s *Speaker) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose
}

// Opens returns CallCountOpen under the lock.
func (s *Speaker) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountOpen
}

type speakerHandle struct {
	s *Speaker
}

// Close counts every call so tests can detect double release.
func (h *speakerHandle) Close() error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.CallCountClose++
	return nil
}
