package resilience

import (
	"context"

	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
	"github.com/MrWong99/quizhost/pkg/provider/tts"
)

// GuardChecker wraps c so every Check runs through b.
func GuardChecker(c factcheck.Checker, b *Breaker) factcheck.Checker {
	return &guardedChecker{next: c, breaker: b}
}

type guardedChecker struct {
	next    factcheck.Checker
	breaker *Breaker
}

func (g *guardedChecker) Check(ctx context.Context, query string) (factcheck.Result, error) {
	var res factcheck.Result
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		res, err = g.next.Check(ctx, query)
		return err
	})
	return res, err
}

// GuardTTS wraps p so every Synthesize runs through b.
func GuardTTS(p tts.Provider, b *Breaker) tts.Provider {
	return &guardedTTS{next: p, breaker: b}
}

type guardedTTS struct {
	next    tts.Provider
	breaker *Breaker
}

func (g *guardedTTS) Synthesize(ctx context.Context, req tts.SummaryRequest) (tts.Speech, error) {
	var speech tts.Speech
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		speech, err = g.next.Synthesize(ctx, req)
		return err
	})
	return speech, err
}
