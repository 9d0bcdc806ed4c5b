// Package s2s defines the Provider interface for real-time speech-to-speech
// backends.
//
// An S2S provider wraps a hosted conversational voice model that accepts
// streamed microphone audio and answers with streamed synthesised speech plus
// transcriptions of both sides, over a single long-lived duplex channel.
//
// The central abstraction is SessionHandle. Outbound audio is queued and
// written in order by the implementation; inbound server messages are surfaced
// one [Event] per message on a channel, so a single consumer goroutine can
// dispatch them without locking.
//
// All implementations must be safe for concurrent use.
package s2s

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/quizhost/pkg/audio"
)

// ErrSessionClosed is returned by SessionHandle methods after Close or after
// the channel dropped.
var ErrSessionClosed = errors.New("s2s: session closed")

// SessionConfig is the configuration sent when a session is opened.
type SessionConfig struct {
	// Voice is the prebuilt voice the model speaks with, e.g. "Kore".
	Voice string

	// Instructions is the system instruction passed through unchanged.
	Instructions string

	// InputTranscription asks the model to transcribe the user's speech.
	InputTranscription bool

	// OutputTranscription asks the model to transcribe its own speech.
	OutputTranscription bool
}

// Transcription is a streamed text delta for one side of the conversation.
type Transcription struct {
	Text string
}

// InlineAudio is a base64-encoded fragment of synthesised speech.
type InlineAudio struct {
	// Data is base64 of 16-bit little-endian mono PCM.
	Data string

	// MIMEType is the payload type as reported by the model, typically
	// "audio/pcm;rate=24000".
	MIMEType string
}

// Event is one inbound server message. Any combination of fields may be set;
// consumers handle them in the order they are declared here.
type Event struct {
	OutputTranscription *Transcription
	InputTranscription  *Transcription
	TurnComplete        bool
	Audio               *InlineAudio
	Interrupted         bool
}

// Empty reports whether e carries nothing a consumer would act on.
func (e Event) Empty() bool {
	return e.OutputTranscription == nil && e.InputTranscription == nil &&
		!e.TurnComplete && e.Audio == nil && !e.Interrupted
}

// Capabilities describes static properties of the S2S provider.
type Capabilities struct {
	// MaxSessionDuration is the hard upper bound on session lifetime imposed
	// by the provider. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the prebuilt voice names the provider accepts.
	Voices []string
}

// SessionHandle represents an open S2S session. It is an interface so that test
// code can supply mock implementations without a live provider connection.
//
// Every method must return quickly: SendAudio is called from the microphone
// callback thread. Callers must call Close when the session is no longer
// needed.
type SessionHandle interface {
	// SendAudio queues one encoded microphone chunk. Chunks are written to the
	// channel in the order SendAudio was called. It never blocks on network
	// I/O; it fails with ErrSessionClosed once the session has ended.
	SendAudio(chunk audio.Chunk) error

	// Events returns the channel of inbound server messages. It is closed when
	// the session ends; check Err afterwards.
	Events() <-chan Event

	// Err returns the error that ended the session, or nil after a clean Close.
	Err() error

	// OnError registers a callback for non-fatal error messages sent by the
	// provider. Passing nil clears it.
	OnError(handler func(error))

	// Close terminates the session and closes the Events channel. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any S2S backend.
type Provider interface {
	// Connect opens a session and returns once the provider has acknowledged
	// the configuration. The caller owns the handle and must Close it.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the provider.
	Capabilities() Capabilities
}
