// Package gemini implements factcheck.Checker with a Gemini text model and
// the Google Search grounding tool, through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
)

// Compile-time interface assertion.
var _ factcheck.Checker = (*Checker)(nil)

const defaultModel = "gemini-3-flash-preview"

// ContentGenerator is the subset of [genai.Models] used by the checker.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Option is a functional option for configuring a Checker.
type Option func(*Checker)

// WithModel sets the text model.
func WithModel(model string) Option {
	return func(c *Checker) { c.model = model }
}

// WithGenerator replaces the genai client. Used in tests.
func WithGenerator(g ContentGenerator) Option {
	return func(c *Checker) { c.gen = g }
}

// Checker implements factcheck.Checker for Gemini with search grounding.
type Checker struct {
	gen   ContentGenerator
	model string
}

// New creates a Checker. A genai client is created for apiKey unless
// [WithGenerator] is given.
func New(ctx context.Context, apiKey string, opts ...Option) (*Checker, error) {
	c := &Checker{model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	if c.gen == nil {
		if apiKey == "" {
			return nil, errors.New("gemini factcheck: apiKey must not be empty")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini factcheck: new client: %w", err)
		}
		c.gen = client.Models
	}
	return c, nil
}

// Check asks the model about query with Google Search enabled.
func (c *Checker) Check(ctx context.Context, query string) (factcheck.Result, error) {
	resp, err := c.gen.GenerateContent(ctx, c.model, genai.Text(factcheck.Prompt(query)), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return factcheck.Result{}, fmt.Errorf("gemini factcheck: generate: %w", err)
	}

	res := factcheck.Result{Query: query, Fact: factcheck.FallbackText}
	if resp == nil {
		return res, nil
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		res.Fact = text
	}
	res.Sources = sources(resp)
	return res, nil
}

// sources collects web grounding chunks from the first candidate.
func sources(resp *genai.GenerateContentResponse) []factcheck.Source {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	var out []factcheck.Source
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		out = append(out, factcheck.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}
