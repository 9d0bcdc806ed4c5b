package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// FormatConverter converts frames to a target format. It logs a warning on
// the first format mismatch so a misconfigured device shows up once in the
// logs instead of once per frame.
// Create one per stream; not designed for shared use across goroutines.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns frame in the target format. A frame already in the target
// format is returned unchanged without allocation. Interleaved input whose
// length is not a multiple of the channel count is dropped (empty Samples).
// Downmixing happens before resampling so stereo input is only resampled once.
func (c *FormatConverter) Convert(frame Frame) Frame {
	if frame.Channels > 1 && len(frame.Samples)%frame.Channels != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio format converter: partial interleaved frame, dropping",
				"samples", len(frame.Samples),
				"channels", frame.Channels,
			)
		})
		return Frame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	}

	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", formatString(frame.SampleRate, frame.Channels),
			"to", c.Target.String(),
		)
	})

	samples := frame.Samples
	channels := frame.Channels
	if channels == 2 && c.Target.Channels == 1 {
		samples = Downmix(samples)
		channels = 1
	}
	if frame.SampleRate != c.Target.SampleRate {
		if channels == 1 {
			samples = Resample(samples, frame.SampleRate, c.Target.SampleRate)
		} else {
			samples = ResampleInterleaved(samples, channels, frame.SampleRate, c.Target.SampleRate)
		}
	}
	if channels == 1 && c.Target.Channels == 2 {
		samples = Upmix(samples)
		channels = 2
	}

	return Frame{
		Samples:    samples,
		SampleRate: c.Target.SampleRate,
		Channels:   channels,
		Timestamp:  frame.Timestamp,
	}
}

// Upmix duplicates each mono sample into an interleaved L+R pair.
func Upmix(mono []float32) []float32 {
	out := make([]float32, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// Downmix averages interleaved L+R pairs into mono. A trailing unpaired
// sample is dropped.
func Downmix(stereo []float32) []float32 {
	out := make([]float32, len(stereo)/2)
	for i := range out {
		out[i] = (stereo[i*2] + stereo[i*2+1]) / 2
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Equal or invalid rates return the input unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	return ResampleInterleaved(samples, 1, srcRate, dstRate)
}

// ResampleInterleaved resamples interleaved audio with the given channel
// count using linear interpolation per channel.
func ResampleInterleaved(samples []float32, channels, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < channels {
		return samples
	}
	srcFrames := len(samples) / channels
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]float32, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			s0 := samples[idx*channels+ch]
			s1 := samples[next*channels+ch]
			out[i*channels+ch] = s0*(1-frac) + s1*frac
		}
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
