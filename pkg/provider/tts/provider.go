// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service and turns a short piece of
// text into one buffer of 16-bit little-endian mono PCM. It is used once per
// game, for the end-of-game summary narration, so the interface is a single
// request/response call rather than a stream.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"fmt"
)

// DefaultVoice is the prebuilt voice used for the summary narration.
const DefaultVoice = "Kore"

// Speech is synthesised audio.
type Speech struct {
	// PCM is 16-bit little-endian mono samples.
	PCM []byte

	// SampleRate is the rate of PCM in Hz.
	SampleRate int
}

// Frames returns the number of samples in PCM.
func (s Speech) Frames() int { return len(s.PCM) / 2 }

// SummaryRequest carries the final tally for the summary narration.
type SummaryRequest struct {
	// Score is the number of correct answers.
	Score int

	// Questions is the number of questions asked.
	Questions int

	// HostName is the display name of the host, used as the speaking style.
	HostName string

	// Voice overrides [DefaultVoice] when non-empty.
	Voice string
}

// FormatSummary renders the narration spoken at the end of a game.
func FormatSummary(req SummaryRequest) string {
	return fmt.Sprintf(
		"Say in the style of %s: 'Congratulations on finishing the game! You scored %d out of %d. It was a pleasure being your host today. See you next time!'",
		req.HostName, req.Score, req.Questions,
	)
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders the summary narration for req. It returns an error
	// if the backend fails or returns no audio.
	Synthesize(ctx context.Context, req SummaryRequest) (Speech, error)
}
