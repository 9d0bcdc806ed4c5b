package capture_test

import (
	"testing"

	"github.com/MrWong99/quizhost/pkg/audio/capture"
)

func TestFramer_ReblocksUnevenPeriods(t *testing.T) {
	t.Parallel()

	var frames [][]float32
	f := capture.NewFramer(4, func(s []float32) {
		frames = append(frames, append([]float32(nil), s...))
	})

	f.Write([]float32{1, 2, 3})
	if len(frames) != 0 {
		t.Fatalf("emitted %d frames before a full frame", len(frames))
	}
	f.Write([]float32{4, 5, 6, 7, 8, 9, 10})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	want := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	for i := range want {
		for j := range want[i] {
			if frames[i][j] != want[i][j] {
				t.Errorf("frame %d sample %d = %v, want %v", i, j, frames[i][j], want[i][j])
			}
		}
	}
	if f.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", f.Pending())
	}

	f.Reset()
	if f.Pending() != 0 {
		t.Errorf("Pending() after Reset = %d, want 0", f.Pending())
	}
}

func TestFramer_ExactMultiple(t *testing.T) {
	t.Parallel()

	count := 0
	f := capture.NewFramer(2, func([]float32) { count++ })
	f.Write(make([]float32, 6))
	if count != 3 {
		t.Errorf("emitted %d frames, want 3", count)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", f.Pending())
	}
}
