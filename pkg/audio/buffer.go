package audio

import "time"

// Buffer is decoded, planar float audio ready for scheduling. Data holds one
// slice per channel, all of equal length.
type Buffer struct {
	SampleRate int
	Channels   int
	Data       [][]float32
}

// NewBuffer allocates a silent buffer of the given shape.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Channels: channels, Data: data}
}

// Frames returns the number of sample frames per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the play time of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Length returns the play time as a [time.Duration].
func (b *Buffer) Length() time.Duration {
	return time.Duration(b.Duration() * float64(time.Second))
}

// Channel returns the samples of channel i.
func (b *Buffer) Channel(i int) []float32 {
	return b.Data[i]
}
