package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/quizhost/internal/resilience"
	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
	fcmock "github.com/MrWong99/quizhost/pkg/provider/factcheck/mock"
	"github.com/MrWong99/quizhost/pkg/provider/tts"
	ttsmock "github.com/MrWong99/quizhost/pkg/provider/tts/mock"
)

var errQuota = errors.New("quota exhausted")

func TestGuardChecker_PassesResults(t *testing.T) {
	t.Parallel()
	m := &fcmock.Checker{Result: factcheck.Result{Fact: "Lima is the capital of Peru."}}
	c := resilience.GuardChecker(m, resilience.NewBreaker(resilience.Config{Name: "factcheck"}))

	res, err := c.Check(context.Background(), "capital of Peru")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Fact != "Lima is the capital of Peru." || res.Query != "capital of Peru" {
		t.Errorf("result = %+v", res)
	}
}

func TestGuardChecker_OpensOnRepeatedFailure(t *testing.T) {
	t.Parallel()
	m := &fcmock.Checker{Err: errQuota}
	b := resilience.NewBreaker(resilience.Config{Name: "factcheck", MaxFailures: 2})
	c := resilience.GuardChecker(m, b)
	ctx := context.Background()

	for range 2 {
		if _, err := c.Check(ctx, "q"); !errors.Is(err, errQuota) {
			t.Fatalf("Check = %v, want errQuota", err)
		}
	}
	if _, err := c.Check(ctx, "q"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Check = %v, want ErrCircuitOpen", err)
	}
	if n := len(m.Calls()); n != 2 {
		t.Errorf("backend called %d times, want 2", n)
	}
}

// hangingChecker never answers before its context ends.
type hangingChecker struct{}

func (hangingChecker) Check(ctx context.Context, _ string) (factcheck.Result, error) {
	<-ctx.Done()
	return factcheck.Result{}, ctx.Err()
}

func TestGuardChecker_OpensOnRepeatedTimeouts(t *testing.T) {
	t.Parallel()
	b := resilience.NewBreaker(resilience.Config{Name: "factcheck", MaxFailures: 3, Cooldown: time.Hour})
	c := resilience.GuardChecker(hangingChecker{}, b)

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := c.Check(ctx, "slow statement")
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Check = %v, want context.DeadlineExceeded", err)
		}
	}
	if b.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open after repeated timeouts", b.State())
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := c.Check(ctx, "slow statement"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Check = %v, want ErrCircuitOpen", err)
	}
	if time.Since(start) > time.Second {
		t.Error("open circuit still waited on the backend")
	}
}

func TestGuardTTS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend *ttsmock.Provider
		wantErr error
	}{
		{
			name:    "success",
			backend: &ttsmock.Provider{Result: tts.Speech{PCM: []byte{1, 0}, SampleRate: 24000}},
		},
		{
			name:    "error passes through",
			backend: &ttsmock.Provider{Err: errQuota},
			wantErr: errQuota,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := resilience.GuardTTS(tt.backend, resilience.NewBreaker(resilience.Config{Name: "tts"}))
			req := tts.SummaryRequest{Score: 3, Questions: 5, HostName: "Professor Trivia"}

			speech, err := p.Synthesize(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Synthesize err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && speech.SampleRate != 24000 {
				t.Errorf("speech = %+v", speech)
			}
			calls := tt.backend.Calls()
			if len(calls) != 1 || calls[0].Req != req {
				t.Errorf("calls = %+v", calls)
			}
		})
	}
}
