package factcheck_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/quizhost/internal/factcheck"
	"github.com/MrWong99/quizhost/internal/observe"
	pfactcheck "github.com/MrWong99/quizhost/pkg/provider/factcheck"
	"github.com/MrWong99/quizhost/pkg/provider/factcheck/mock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// gatedChecker releases each query individually so tests control completion
// order.
type gatedChecker struct {
	mu    sync.Mutex
	gates map[string]chan error
}

func newGatedChecker(queries ...string) *gatedChecker {
	g := &gatedChecker{gates: make(map[string]chan error)}
	for _, q := range queries {
		g.gates[q] = make(chan error, 1)
	}
	return g
}

func (g *gatedChecker) Check(ctx context.Context, query string) (pfactcheck.Result, error) {
	g.mu.Lock()
	gate := g.gates[query]
	g.mu.Unlock()
	select {
	case err := <-gate:
		if err != nil {
			return pfactcheck.Result{}, err
		}
		return pfactcheck.Result{Query: query, Fact: "fact about " + query}, nil
	case <-ctx.Done():
		return pfactcheck.Result{}, ctx.Err()
	}
}

func (g *gatedChecker) release(query string, err error) { g.gates[query] <- err }

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// results collects OnResult callbacks.
type results struct {
	ch chan pfactcheck.Result
}

func newResults() *results { return &results{ch: make(chan pfactcheck.Result, 16)} }

func (r *results) on(res pfactcheck.Result) { r.ch <- res }

func (r *results) next(t *testing.T) pfactcheck.Result {
	t.Helper()
	select {
	case res := <-r.ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fact-check result")
		return pfactcheck.Result{}
	}
}

func waitPending(t *testing.T, b *factcheck.Board, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Pending() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Pending() = %d, want %d", b.Pending(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBoard_TriggerStoresResult(t *testing.T) {
	t.Parallel()

	checker := &mock.Checker{Result: pfactcheck.Result{
		Fact:    "Paris has been the capital since 508 AD.",
		Sources: []pfactcheck.Source{{Title: "Wiki", URI: "https://example.org"}},
	}}
	got := newResults()
	b := factcheck.NewBoard(factcheck.Config{Checker: checker, Metrics: testMetrics(t), OnResult: got.on})
	t.Cleanup(func() { _ = b.Close() })

	if _, ok := b.Latest(); ok {
		t.Fatal("fresh board has a result")
	}

	b.Trigger("The capital of France is Paris, which it has been for centuries.")
	res := got.next(t)

	if res.Query != "The capital of France is Paris, which it has been for centuries." {
		t.Errorf("Query = %q", res.Query)
	}
	latest, ok := b.Latest()
	if !ok || latest.Fact != res.Fact || len(latest.Sources) != 1 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
	waitPending(t, b, 0)
}

func TestBoard_LastWriteWins(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker("first", "second")
	got := newResults()
	b := factcheck.NewBoard(factcheck.Config{Checker: checker, Metrics: testMetrics(t), OnResult: got.on})
	t.Cleanup(func() { _ = b.Close() })

	b.Trigger("first")
	b.Trigger("second")
	waitPending(t, b, 2)
	if !b.Checking() {
		t.Error("Checking() = false with requests in flight")
	}

	// The later trigger finishes first; the earlier one overwrites it.
	checker.release("second", nil)
	got.next(t)
	checker.release("first", nil)
	got.next(t)

	latest, _ := b.Latest()
	if latest.Query != "first" {
		t.Errorf("Latest().Query = %q, want %q", latest.Query, "first")
	}
	waitPending(t, b, 0)
}

func TestBoard_FailureKeepsPrevious(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker("good", "bad")
	got := newResults()
	b := factcheck.NewBoard(factcheck.Config{Checker: checker, Metrics: testMetrics(t), OnResult: got.on})
	t.Cleanup(func() { _ = b.Close() })

	b.Trigger("good")
	checker.release("good", nil)
	got.next(t)

	b.Trigger("bad")
	checker.release("bad", errors.New("quota exceeded"))
	waitPending(t, b, 0)

	latest, ok := b.Latest()
	if !ok || latest.Query != "good" {
		t.Errorf("Latest() = %+v, %v, want previous result kept", latest, ok)
	}
}

func TestBoard_TimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	checker := &mock.Checker{Block: make(chan struct{})}
	b := factcheck.NewBoard(factcheck.Config{Checker: checker, Metrics: testMetrics(t), Timeout: 20 * time.Millisecond})
	t.Cleanup(func() { _ = b.Close() })

	b.Trigger("slow")
	waitPending(t, b, 0)
	if _, ok := b.Latest(); ok {
		t.Error("timed-out request produced a result")
	}
}

// ctxChecker blocks until release is closed and reports whether its
// context was still live at that point.
type ctxChecker struct {
	release chan struct{}
	live    chan bool
}

func (c *ctxChecker) Check(ctx context.Context, query string) (pfactcheck.Result, error) {
	<-c.release
	c.live <- ctx.Err() == nil
	return pfactcheck.Result{Query: query, Fact: "late fact"}, nil
}

func TestBoard_CloseLeavesRequestsRunningAndDropsLateResults(t *testing.T) {
	t.Parallel()

	checker := &ctxChecker{release: make(chan struct{}), live: make(chan bool, 1)}
	got := newResults()
	b := factcheck.NewBoard(factcheck.Config{
		Checker:   checker,
		Metrics:   testMetrics(t),
		OnResult:  got.on,
		CloseWait: 10 * time.Millisecond,
	})

	b.Trigger("late")
	waitPending(t, b, 1)

	start := time.Now()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close blocked for %v on a hung request", elapsed)
	}

	close(checker.release)
	select {
	case live := <-checker.live:
		if !live {
			t.Error("in-flight request was cancelled by Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}
	waitPending(t, b, 0)

	if _, ok := b.Latest(); ok {
		t.Error("result accepted after Close")
	}
	select {
	case res := <-got.ch:
		t.Errorf("OnResult called after Close with %+v", res)
	default:
	}

	b.Trigger("after close")
	if b.Pending() != 0 {
		t.Errorf("Trigger after Close started a request")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestBoard_CloseWaitsForRequestsWithinBound(t *testing.T) {
	t.Parallel()

	checker := newGatedChecker("quick")
	b := factcheck.NewBoard(factcheck.Config{Checker: checker, Metrics: testMetrics(t), CloseWait: 5 * time.Second})

	b.Trigger("quick")
	waitPending(t, b, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		checker.release("quick", nil)
	}()

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := b.Pending(); n != 0 {
		t.Errorf("Pending() after Close = %d, want 0", n)
	}
}

func TestNewBoard_RequiresChecker(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("NewBoard without a Checker did not panic")
		}
	}()
	factcheck.NewBoard(factcheck.Config{})
}
