// Package mock provides a test double for the factcheck.Checker interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
)

// Checker is a mock implementation of factcheck.Checker.
//
// When Block is non-nil every call waits on it (or on ctx) before returning,
// which lets tests hold requests in flight.
type Checker struct {
	mu sync.Mutex

	// Result is returned by Check when Err is nil. Query is filled in from the
	// call when left empty.
	Result factcheck.Result

	// Err, if non-nil, is returned as the error from Check.
	Err error

	// Block, when non-nil, delays every Check until it is closed.
	Block chan struct{}

	// Queries records every query passed to Check in order.
	Queries []string
}

// Check records the call and returns Result, Err.
func (c *Checker) Check(ctx context.Context, query string) (factcheck.Result, error) {
	c.mu.Lock()
	c.Queries = append(c.Queries, query)
	block := c.Block
	res, err := c.Result, c.Err
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return factcheck.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return factcheck.Result{}, err
	}
	if res.Query == "" {
		res.Query = query
	}
	return res, nil
}

// Calls returns a copy of Queries. Thread-safe.
func (c *Checker) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Queries...)
}

// Ensure Checker implements factcheck.Checker at compile time.
var _ factcheck.Checker = (*Checker)(nil)
