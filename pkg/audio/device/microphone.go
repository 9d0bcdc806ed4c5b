// Package device binds the capture and playback pipelines to real sound
// hardware: malgo (miniaudio) for the microphone and oto for the speaker.
//
// Both backends need cgo and a sound server at runtime, so they are kept out
// of the pure-Go packages and swapped for pkg/audio/mock in tests.
package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/quizhost/pkg/audio"
	"github.com/MrWong99/quizhost/pkg/audio/capture"
)

// Compile-time interface assertion.
var _ capture.Source = (*Microphone)(nil)

// MicrophoneOption configures a [Microphone].
type MicrophoneOption func(*Microphone)

// WithCaptureFormat requests a device format other than 16 kHz mono. Frames
// are converted to the live input format before framing.
func WithCaptureFormat(f audio.Format) MicrophoneOption {
	return func(m *Microphone) { m.format = f }
}

// WithPeriod sets the device period in milliseconds.
func WithPeriod(ms uint32) MicrophoneOption {
	return func(m *Microphone) { m.periodMS = ms }
}

// Microphone is a [capture.Source] backed by the default malgo capture
// device. Samples are requested as signed 16-bit, converted to float, and
// re-blocked into [audio.FrameSize] frames.
type Microphone struct {
	format   audio.Format
	periodMS uint32

	mu     sync.Mutex
	mctx   *malgo.AllocatedContext
	dev    *malgo.Device
	framer *capture.Framer
	conv   *audio.FormatConverter
	closed bool
}

// NewMicrophone returns an unopened microphone. The device is acquired in
// Start.
func NewMicrophone(opts ...MicrophoneOption) *Microphone {
	m := &Microphone{
		format:   audio.Format{SampleRate: audio.InputSampleRate, Channels: 1},
		periodMS: 20,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start opens the default capture device and begins delivering frames.
func (m *Microphone) Start(onFrame func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("device: microphone closed")
	}
	if m.dev != nil {
		return fmt.Errorf("device: microphone already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("device: miniaudio", "msg", msg)
	})
	if err != nil {
		return fmt.Errorf("%w: init context: %w", capture.ErrDeviceUnavailable, err)
	}

	m.conv = &audio.FormatConverter{Target: audio.Format{SampleRate: audio.InputSampleRate, Channels: 1}}
	m.framer = capture.NewFramer(audio.FrameSize, onFrame)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)
	cfg.PeriodSizeInMilliseconds = m.periodMS

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { m.onData(in) },
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: init device: %w", capture.ErrDeviceUnavailable, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: start device: %w", capture.ErrDeviceUnavailable, err)
	}

	m.mctx = mctx
	m.dev = dev
	slog.Info("device: microphone started", "format", m.format.String())
	return nil
}

// onData runs on the miniaudio callback thread.
func (m *Microphone) onData(in []byte) {
	samples := audio.PCM16ToFloat32(in)
	frame := m.conv.Convert(audio.Frame{
		Samples:    samples,
		SampleRate: m.format.SampleRate,
		Channels:   m.format.Channels,
	})
	m.framer.Write(frame.Samples)
}

// Close stops the device and releases miniaudio. Idempotent.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.dev != nil {
		_ = m.dev.Stop()
		m.dev.Uninit()
		m.dev = nil
	}
	if m.mctx != nil {
		err := m.mctx.Uninit()
		m.mctx.Free()
		m.mctx = nil
		if err != nil {
			return fmt.Errorf("device: release microphone: %w", err)
		}
	}
	return nil
}
