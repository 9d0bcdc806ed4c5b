package playback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/quizhost/pkg/audio"
)

// renderBlock is the number of context frames rendered per pull.
const renderBlock = 480

// DefaultDrainTail is how long [PlayOnce] keeps a sink open after the last
// sample when the sink does not report its own latency.
const DefaultDrainTail = 150 * time.Millisecond

// LatencyReporter is implemented by sinks that buffer rendered audio before
// it is heard. [PlayOnce] keeps such a sink open for Latency after the last
// sample has been rendered.
type LatencyReporter interface {
	Latency() time.Duration
}

// Sink is an audio output device. Open starts pulling samples from c,
// typically through a [Reader], until the returned closer is closed.
type Sink interface {
	Open(c *Context) (io.Closer, error)
}

// Reader adapts a [Context] to a pull-style device that wants interleaved
// little-endian 16-bit PCM. Mono context output is resampled to the device
// rate and copied into every device channel.
//
// Reader is not safe for concurrent use; a device drives it from one thread.
type Reader struct {
	ctx    *Context
	format audio.Format

	mono    []float32
	pending []byte
}

// NewReader returns a Reader producing audio in the given device format.
// Zero fields in format default to the context rate and one channel.
func NewReader(c *Context, format audio.Format) *Reader {
	if format.SampleRate <= 0 {
		format.SampleRate = c.SampleRate()
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	return &Reader{
		ctx:    c,
		format: format,
		mono:   make([]float32, renderBlock),
	}
}

// Format returns the device format the reader produces.
func (r *Reader) Format() audio.Format { return r.format }

// Read renders as many blocks as needed to fill p. It never returns an
// error; a closed context yields silence.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) < len(p) {
		r.ctx.Render(r.mono)
		samples := audio.Resample(r.mono, r.ctx.SampleRate(), r.format.SampleRate)
		r.pending = append(r.pending, audio.EncodePCM16(r.spread(samples))...)
	}
	n := copy(p, r.pending)
	r.pending = r.pending[:copy(r.pending, r.pending[n:])]
	return n, nil
}

func (r *Reader) spread(mono []float32) []float32 {
	switch r.format.Channels {
	case 1:
		return mono
	case 2:
		return audio.Upmix(mono)
	}
	out := make([]float32, len(mono)*r.format.Channels)
	for i, s := range mono {
		for c := range r.format.Channels {
			out[i*r.format.Channels+c] = s
		}
	}
	return out
}

// PlayOnce plays pcm (16-bit little-endian mono at sampleRate) on a fresh
// context with a fixed gain, independent of any live scheduler. It blocks
// until the audio and a trailing stretch of silence covering the sink's
// buffer have been rendered, or ctx is cancelled, then releases the device.
func PlayOnce(ctx context.Context, sink Sink, pcm []byte, sampleRate int, gain float64) error {
	c := NewContext(sampleRate, gain)
	defer c.Close()

	buf := audio.DecodeToBuffer(pcm, c.SampleRate(), 1)
	if buf.Frames() == 0 {
		return nil
	}
	src, err := c.Schedule(buf, 0, nil)
	if err != nil {
		return fmt.Errorf("playback: play once: %w", err)
	}
	tail := DefaultDrainTail
	if lr, ok := sink.(LatencyReporter); ok {
		tail = lr.Latency()
	}
	last := src
	if frames := int(tail.Seconds() * float64(c.SampleRate())); frames > 0 {
		silence := audio.NewBuffer(c.SampleRate(), 1, frames)
		if last, err = c.Schedule(silence, src.StartFrame()+src.Frames(), nil); err != nil {
			return fmt.Errorf("playback: play once: %w", err)
		}
	}

	out, err := sink.Open(c)
	if err != nil {
		return fmt.Errorf("playback: play once: open output: %w", err)
	}
	defer out.Close()

	select {
	case <-last.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
