package capture_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/quizhost/pkg/audio"
	"github.com/MrWong99/quizhost/pkg/audio/capture"
	"github.com/MrWong99/quizhost/pkg/audio/mock"
)

// recordingSink collects every chunk it receives.
type recordingSink struct {
	mu     sync.Mutex
	chunks []audio.Chunk
	err    error
}

func (s *recordingSink) SendAudio(c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *recordingSink) get() []audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.Chunk(nil), s.chunks...)
}

func frameOf(v float32) []float32 {
	f := make([]float32, audio.FrameSize)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestPipeline_OneChunkPerFrameInOrder(t *testing.T) {
	t.Parallel()

	mic := &mock.Microphone{}
	sink := &recordingSink{}
	p := capture.New(mic, sink)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	levels := []float32{0.1, -0.2, 0.3, -0.4, 0.5}
	for _, v := range levels {
		mic.Emit(frameOf(v))
	}

	chunks := sink.get()
	if len(chunks) != len(levels) {
		t.Fatalf("expected %d chunks, got %d", len(levels), len(chunks))
	}
	for i, c := range chunks {
		if c.MIMEType != audio.InputMIMEType {
			t.Errorf("chunk %d MIMEType = %q", i, c.MIMEType)
		}
		raw, err := audio.DecodeBase64(c.Data)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		samples := audio.PCM16ToFloat32(raw)
		if len(samples) != audio.FrameSize {
			t.Fatalf("chunk %d has %d samples, want %d", i, len(samples), audio.FrameSize)
		}
		if diff := samples[0] - levels[i]; diff > 1.0/32768 || diff < -1.0/32768 {
			t.Errorf("chunk %d out of order: first sample %v, want %v", i, samples[0], levels[i])
		}
	}
	if p.Frames() != int64(len(levels)) {
		t.Errorf("Frames() = %d, want %d", p.Frames(), len(levels))
	}
}

func TestPipeline_StartFailureIsDeviceUnavailable(t *testing.T) {
	t.Parallel()

	mic := &mock.Microphone{StartError: errors.New("permission denied")}
	sink := &recordingSink{}
	p := capture.New(mic, sink)

	err := p.Start()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Errorf("error should wrap ErrDeviceUnavailable, got: %v", err)
	}

	mic.Emit(frameOf(0.1))
	if n := len(sink.get()); n != 0 {
		t.Errorf("expected no chunks after failed start, got %d", n)
	}
}

func TestPipeline_SendErrorDropsFrame(t *testing.T) {
	t.Parallel()

	mic := &mock.Microphone{}
	sink := &recordingSink{err: errors.New("channel closed")}
	var hookErrs int
	p := capture.New(mic, sink, capture.WithFrameHook(func(_ int, err error) {
		if err != nil {
			hookErrs++
		}
	}))
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Close()

	mic.Emit(frameOf(0))
	mic.Emit(frameOf(0))

	if p.SendErrors() != 2 {
		t.Errorf("SendErrors() = %d, want 2", p.SendErrors())
	}
	if hookErrs != 2 {
		t.Errorf("hook saw %d errors, want 2", hookErrs)
	}
}

func TestPipeline_CloseIsIdempotentAndStopsForwarding(t *testing.T) {
	t.Parallel()

	mic := &mock.Microphone{}
	sink := &recordingSink{}
	p := capture.New(mic, sink)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if mic.Closes() != 1 {
		t.Errorf("source closed %d times, want 1", mic.Closes())
	}

	mic.Emit(frameOf(0.2))
	if n := len(sink.get()); n != 0 {
		t.Errorf("expected no chunks after Close, got %d", n)
	}
	if err := p.Start(); err == nil {
		t.Error("Start after Close should fail")
	}
}

func TestSinkFunc(t *testing.T) {
	t.Parallel()
	var got audio.Chunk
	sink := capture.SinkFunc(func(c audio.Chunk) error {
		got = c
		return nil
	})
	mic := &mock.Microphone{}
	p := capture.New(mic, sink)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mic.Emit(frameOf(0))
	if got.MIMEType != audio.InputMIMEType {
		t.Errorf("sink func not called, got %+v", got)
	}
}
