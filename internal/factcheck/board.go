// Package factcheck runs fact checks of long host statements in the
// background and keeps the most recent result for display.
//
// Checks are detached from the turn that triggered them: [Board.Trigger]
// returns immediately, every request gets its own timeout, and whichever
// request finishes last wins. [Board.Close] never cancels a request; it
// waits a short while for stragglers and drops any result that arrives after
// it was called.
package factcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/quizhost/internal/observe"
	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
)

// DefaultTimeout bounds a single fact-check request.
const DefaultTimeout = 30 * time.Second

// DefaultCloseWait bounds how long [Board.Close] waits for in-flight requests.
const DefaultCloseWait = time.Second

// Config configures a [Board].
type Config struct {
	// Checker performs the fact checks. Required.
	Checker factcheck.Checker

	// Timeout bounds each request. Defaults to [DefaultTimeout].
	Timeout time.Duration

	// CloseWait bounds how long Close waits for in-flight requests before
	// returning. Defaults to [DefaultCloseWait].
	CloseWait time.Duration

	// Metrics records latency, request counts and the in-flight gauge.
	// Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// ProviderName labels provider metrics. Defaults to "factcheck".
	ProviderName string

	// OnResult, if set, is called with every accepted result from the
	// request goroutine.
	OnResult func(factcheck.Result)
}

// Board owns the latest fact-check result.
//
// All methods are safe for concurrent use.
type Board struct {
	checker   factcheck.Checker
	timeout   time.Duration
	closeWait time.Duration
	metrics   *observe.Metrics
	provider  string
	onResult  func(factcheck.Result)

	wg sync.WaitGroup

	mu      sync.Mutex
	latest  factcheck.Result
	has     bool
	pending int
	closed  bool
}

// NewBoard creates a [Board]. It panics if cfg.Checker is nil.
func NewBoard(cfg Config) *Board {
	if cfg.Checker == nil {
		panic("factcheck: NewBoard requires a Checker")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CloseWait <= 0 {
		cfg.CloseWait = DefaultCloseWait
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "factcheck"
	}
	return &Board{
		checker:   cfg.Checker,
		timeout:   cfg.Timeout,
		closeWait: cfg.CloseWait,
		metrics:   cfg.Metrics,
		provider:  cfg.ProviderName,
		onResult:  cfg.OnResult,
	}
}

// Trigger starts a fact check of query in the background. It never blocks
// and is a no-op after Close.
func (b *Board) Trigger(query string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending++
	b.wg.Add(1)
	b.mu.Unlock()

	b.metrics.PendingFactChecks.Add(context.Background(), 1)
	go b.run(query)
}

func (b *Board) run(query string) {
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "factcheck.check")

	start := time.Now()
	res, err := b.checker.Check(ctx, query)
	b.metrics.FactCheckDuration.Record(ctx, time.Since(start).Seconds())
	observe.EndSpan(span, err)

	b.metrics.PendingFactChecks.Add(context.Background(), -1)
	if err != nil {
		b.metrics.RecordProviderRequest(ctx, b.provider, "factcheck", "error")
		b.metrics.RecordProviderError(ctx, b.provider, "factcheck")
	} else {
		b.metrics.RecordProviderRequest(ctx, b.provider, "factcheck", "ok")
	}

	b.mu.Lock()
	b.pending--
	if b.closed {
		b.mu.Unlock()
		return
	}
	if err != nil {
		b.mu.Unlock()
		observe.Logger(ctx).Warn("factcheck: request failed, keeping previous result",
			"query_chars", len(query), "err", err)
		return
	}
	b.latest = res
	b.has = true
	b.mu.Unlock()

	if b.onResult != nil {
		b.onResult(res)
	}
	slog.Debug("factcheck: result accepted", "sources", len(res.Sources))
}

// Latest returns the most recently accepted result and whether there is one.
func (b *Board) Latest() (factcheck.Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.has
}

// Pending reports the number of requests in flight.
func (b *Board) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Checking reports whether any request is in flight.
func (b *Board) Checking() bool {
	return b.Pending() > 0
}

// Close stops accepting triggers and drops every result that arrives from
// now on. In-flight requests keep running under their own timeout; Close
// waits up to the configured CloseWait for them and then returns. Calling
// Close more than once is safe.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(b.closeWait):
		slog.Debug("factcheck: close left requests running", "pending", b.Pending())
	}
	return nil
}
