// Package factcheck defines the Checker interface for search-grounded fact
// checking backends.
//
// A Checker takes a statement the quiz host made and returns a short
// explanation together with the web sources the model grounded it on.
//
// Implementations must be safe for concurrent use.
package factcheck

import (
	"context"
	"fmt"
)

// FallbackText is returned as the fact when the backend produced no text.
const FallbackText = "No detailed information found."

// Source is one web page the answer was grounded on.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Result is a completed fact check.
type Result struct {
	// Query is the statement that was checked.
	Query string `json:"query"`

	// Fact is the model's explanation.
	Fact string `json:"fact"`

	// Sources lists grounding pages in the order the model returned them.
	Sources []Source `json:"sources,omitempty"`
}

// Prompt renders the request text for query.
func Prompt(query string) string {
	return fmt.Sprintf("Fact check or provide a deep dive for this trivia query: %s. Be concise but thorough.", query)
}

// Checker is the abstraction over any fact-check backend.
type Checker interface {
	// Check fact-checks query. Errors are returned for transport and quota
	// failures; an answer without text is not an error.
	Check(ctx context.Context, query string) (Result, error)
}
