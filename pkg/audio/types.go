// Package audio holds the sample formats and PCM codec shared by the capture
// and playback pipelines.
//
// Two fixed formats flow through quizhost:
//
//   - microphone input: mono float32 frames at [InputSampleRate], encoded to
//     16-bit little-endian PCM for the live channel;
//   - model output: mono 16-bit little-endian PCM at [OutputSampleRate],
//     decoded to float32 [Buffer] values for scheduling.
//
// Sub-packages build on these types: capture (microphone → channel),
// playback (channel → speaker timeline) and device (hardware backends).
package audio

import "time"

const (
	// InputSampleRate is the capture rate expected by the live channel.
	InputSampleRate = 16000

	// OutputSampleRate is the rate of synthesised speech returned by the model.
	OutputSampleRate = 24000

	// FrameSize is the number of samples in one capture frame.
	FrameSize = 4096

	// InputMIMEType labels outbound audio chunks.
	InputMIMEType = "audio/pcm;rate=16000"
)

// Frame is one block of captured audio. Samples are in [-1, 1], interleaved
// when Channels > 1.
//
// A Frame handed to a capture callback is only valid for the duration of that
// callback; the backing array is reused for the next frame.
type Frame struct {
	// Samples holds the PCM samples.
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for the live channel, 48000 for a USB mic).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Chunk is the wire form of one captured frame: base64 text of 16-bit
// little-endian PCM together with its MIME type.
type Chunk struct {
	// Data is the base64 (standard alphabet) encoding of the PCM bytes.
	Data string

	// MIMEType describes the encoding, e.g. "audio/pcm;rate=16000".
	MIMEType string
}
