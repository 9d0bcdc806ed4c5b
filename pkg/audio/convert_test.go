package audio_test

import (
	"math"
	"testing"

	"github.com/MrWong99/quizhost/pkg/audio"
)

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestUpmix(t *testing.T) {
	got := audio.Upmix([]float32{0.1, -0.2, 0.3})
	want := []float32{0.1, 0.1, -0.2, -0.2, 0.3, 0.3}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	// Two stereo frames: L=0.2,R=0.4 and L=-0.2,R=-0.4
	got := audio.Downmix([]float32{0.2, 0.4, -0.2, -0.4})
	want := []float32{0.3, -0.3}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResample_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := audio.Resample(in, 48000, 48000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 2 samples at 16kHz → 6 samples at 48kHz (3x)
	out := audio.Resample([]float32{0.25, 0.5}, 16000, 48000)
	if len(out) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(out))
	}
	if out[0] != 0.25 {
		t.Errorf("first sample: got %v, want 0.25", out[0])
	}
	last := out[len(out)-1]
	if last < 0.45 || last > 0.55 {
		t.Errorf("last sample: got %v, want close to 0.5", last)
	}
}

func TestResample_Downsample(t *testing.T) {
	out := audio.Resample([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, 48000, 16000)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
}

func TestResampleInterleaved_Stereo(t *testing.T) {
	// 2 stereo frames at 16kHz → 6 stereo frames (12 samples) at 48kHz
	out := audio.ResampleInterleaved([]float32{0.1, 0.2, 0.3, 0.4}, 2, 16000, 48000)
	if len(out) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(out))
	}
}

func TestFormatConverter_NoOp(t *testing.T) {
	conv := audio.FormatConverter{
		Target: audio.Format{SampleRate: 16000, Channels: 1},
	}
	frame := audio.Frame{
		Samples:    []float32{0.1, 0.2},
		SampleRate: 16000,
		Channels:   1,
	}
	result := conv.Convert(frame)
	if &result.Samples[0] != &frame.Samples[0] {
		t.Error("expected same slice (zero allocation) for matching format")
	}
}

func TestFormatConverter_StereoMicToLiveFormat(t *testing.T) {
	// 48 kHz stereo USB microphone → 16 kHz mono for the live channel.
	conv := audio.FormatConverter{
		Target: audio.Format{SampleRate: audio.InputSampleRate, Channels: 1},
	}
	samples := make([]float32, 48*2) // 48 stereo frames = 1ms
	for i := range samples {
		samples[i] = 0.5
	}
	result := conv.Convert(audio.Frame{Samples: samples, SampleRate: 48000, Channels: 2})
	if result.SampleRate != audio.InputSampleRate || result.Channels != 1 {
		t.Fatalf("unexpected format: %dHz %dch", result.SampleRate, result.Channels)
	}
	if len(result.Samples) != 16 {
		t.Fatalf("expected 16 samples, got %d", len(result.Samples))
	}
	for i, s := range result.Samples {
		if !approxEqual(s, 0.5) {
			t.Errorf("sample %d: got %v, want 0.5", i, s)
		}
	}
}

func TestFormatConverter_MonoToStereo(t *testing.T) {
	conv := audio.FormatConverter{
		Target: audio.Format{SampleRate: 24000, Channels: 2},
	}
	result := conv.Convert(audio.Frame{Samples: []float32{0.1, 0.2}, SampleRate: 24000, Channels: 1})
	want := []float32{0.1, 0.1, 0.2, 0.2}
	if len(result.Samples) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(result.Samples), len(want))
	}
	for i := range want {
		if result.Samples[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, result.Samples[i], want[i])
		}
	}
}

func TestFormatConverter_PartialInterleavedFrame(t *testing.T) {
	conv := audio.FormatConverter{
		Target: audio.Format{SampleRate: 16000, Channels: 1},
	}
	result := conv.Convert(audio.Frame{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 48000, Channels: 2})
	if len(result.Samples) != 0 {
		t.Errorf("expected empty samples for partial frame, got %d", len(result.Samples))
	}
}

func TestFormat_String(t *testing.T) {
	tests := []struct {
		f    audio.Format
		want string
	}{
		{audio.Format{SampleRate: 16000, Channels: 1}, "16000Hz mono"},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Format{SampleRate: 48000, Channels: 6}, "48000Hz 6ch"},
	}
	for _, tc := range tests {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
