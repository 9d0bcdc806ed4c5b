package device

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/quizhost/pkg/audio"
	"github.com/MrWong99/quizhost/pkg/audio/playback"
)

// Compile-time interface assertion.
var (
	_ playback.Sink            = (*Speaker)(nil)
	_ playback.LatencyReporter = (*Speaker)(nil)
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoFmt  audio.Format
	otoErr  error
)

func sharedContext(f audio.Format, bufferSize int) (*oto.Context, audio.Format, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(bufferSize) * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("device: init speaker: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFmt = f
	})
	return otoCtx, otoFmt, otoErr
}

// Speaker is a [playback.Sink] on the default output device. Every Open
// creates an oto player that pulls from the given context through a
// [playback.Reader].
type Speaker struct {
	// Format is the device format. The first Speaker opened in a process
	// fixes it for every later one. Defaults to 24 kHz stereo.
	Format audio.Format

	// BufferMS is the device buffer in milliseconds. Defaults to 100.
	BufferMS int
}

// Latency reports the device buffer, so playback.PlayOnce keeps the player
// open until the last samples have been heard.
func (s *Speaker) Latency() time.Duration {
	if s.BufferMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(s.BufferMS) * time.Millisecond
}

// Open starts playing c.
func (s *Speaker) Open(c *playback.Context) (io.Closer, error) {
	f := s.Format
	if f.SampleRate <= 0 {
		f.SampleRate = audio.OutputSampleRate
	}
	if f.Channels <= 0 {
		f.Channels = 2
	}
	buffer := s.BufferMS
	if buffer <= 0 {
		buffer = 100
	}

	ctx, actual, err := sharedContext(f, buffer)
	if err != nil {
		return nil, err
	}
	player := ctx.NewPlayer(playback.NewReader(c, actual))
	player.Play()
	return &speakerHandle{player: player}, nil
}

type speakerHandle struct {
	once   sync.Once
	player *oto.Player
	err    error
}

func (h *speakerHandle) Close() error {
	h.once.Do(func() {
		h.player.Pause()
		h.err = h.player.Close()
	})
	return h.err
}
