// Package capture turns a live microphone into an ordered stream of encoded
// audio chunks for the real-time channel.
//
// A [Source] drives the pipeline: it invokes the frame callback on its own
// cadence (the audio driver's callback thread), once per fixed-size frame.
// For every frame the [Pipeline] encodes the samples with the audio codec and
// hands exactly one [audio.Chunk] to its [Sink] before returning. There is no
// internal queue; a slow callback means frames dropped by the driver, and a
// slow channel means sends queued inside the channel implementation.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/quizhost/pkg/audio"
)

// ErrDeviceUnavailable is wrapped by errors that indicate microphone access
// was denied or no capture device exists.
var ErrDeviceUnavailable = errors.New("capture: microphone unavailable")

// Source is a microphone. Start begins invoking onFrame with one frame of
// [audio.FrameSize] mono samples at [audio.InputSampleRate] per call; the
// slice is only valid until onFrame returns. Calls are never concurrent with
// each other.
//
// Close stops the device and releases it. It is safe to call more than once.
type Source interface {
	Start(onFrame func(samples []float32)) error
	Close() error
}

// Sink receives encoded chunks in capture order. SendAudio must not block on
// network I/O.
type Sink interface {
	SendAudio(chunk audio.Chunk) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(chunk audio.Chunk) error

// SendAudio calls f(chunk).
func (f SinkFunc) SendAudio(chunk audio.Chunk) error { return f(chunk) }

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithFrameHook registers fn to be called after every frame with the number
// of samples encoded and the send error, if any. Used for metrics.
func WithFrameHook(fn func(samples int, err error)) Option {
	return func(p *Pipeline) { p.hook = fn }
}

// Pipeline wires a [Source] to a [Sink] through the PCM codec.
type Pipeline struct {
	src  Source
	sink Sink
	hook func(samples int, err error)

	mu      sync.Mutex
	started bool
	stopped bool

	frames     atomic.Int64
	sendErrors atomic.Int64
	warnOnce   sync.Once
	closeOnce  sync.Once
	closeErr   error
}

// New creates a Pipeline. Nothing is captured until [Pipeline.Start].
func New(src Source, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{src: src, sink: sink}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins capture. A device failure is returned wrapped in
// [ErrDeviceUnavailable]; the pipeline then never produces chunks.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("capture: already started")
	}
	if p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("capture: pipeline closed")
	}
	p.started = true
	p.mu.Unlock()

	if err := p.src.Start(p.handleFrame); err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return nil
}

// handleFrame encodes one frame and forwards it. It runs on the source's
// callback thread and must finish before the next frame arrives.
func (p *Pipeline) handleFrame(samples []float32) {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}

	chunk := audio.EncodeChunk(samples)
	err := p.sink.SendAudio(chunk)
	p.frames.Add(1)
	if err != nil {
		p.sendErrors.Add(1)
		p.warnOnce.Do(func() {
			slog.Warn("capture: send failed, dropping frame", "err", err)
		})
		slog.Debug("capture: send failed", "err", err, "frames", p.frames.Load())
	}
	if p.hook != nil {
		p.hook(len(samples), err)
	}
}

// Frames returns the number of frames handled so far.
func (p *Pipeline) Frames() int64 { return p.frames.Load() }

// SendErrors returns how many frames the sink rejected.
func (p *Pipeline) SendErrors() int64 { return p.sendErrors.Load() }

// Close stops forwarding frames and closes the source. Idempotent.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		p.closeErr = p.src.Close()
	})
	return p.closeErr
}
