package gemini_test

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
	"github.com/MrWong99/quizhost/pkg/provider/factcheck/gemini"
)

type fakeGenerator struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	cand := &genai.Candidate{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
	}
	if len(chunks) > 0 {
		cand.GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: chunks}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func TestCheck_RequestShape(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{resp: textResponse("Paris has been the capital since 508 AD.")}
	c, err := gemini.New(context.Background(), "", gemini.WithGenerator(gen))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Check(context.Background(), "The capital of France is Paris")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if gen.model != "gemini-3-flash-preview" {
		t.Errorf("model = %q", gen.model)
	}
	if want := factcheck.Prompt("The capital of France is Paris"); gen.prompt != want {
		t.Errorf("prompt = %q, want %q", gen.prompt, want)
	}
	if len(gen.config.Tools) != 1 || gen.config.Tools[0].GoogleSearch == nil {
		t.Errorf("Tools = %+v, want a single GoogleSearch tool", gen.config.Tools)
	}
	if res.Fact != "Paris has been the capital since 508 AD." || res.Query != "The capital of France is Paris" {
		t.Errorf("result = %+v", res)
	}
}

func TestCheck_SourcesFilteredToWeb(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{resp: textResponse("ok",
		&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: "Wiki", URI: "https://example.org/a"}},
		&genai.GroundingChunk{},
		&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: "News", URI: "https://example.org/b"}},
	)}
	c, _ := gemini.New(context.Background(), "", gemini.WithGenerator(gen))

	res, err := c.Check(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	want := []factcheck.Source{
		{Title: "Wiki", URI: "https://example.org/a"},
		{Title: "News", URI: "https://example.org/b"},
	}
	if len(res.Sources) != len(want) {
		t.Fatalf("Sources = %+v, want %+v", res.Sources, want)
	}
	for i := range want {
		if res.Sources[i] != want[i] {
			t.Errorf("Sources[%d] = %+v, want %+v", i, res.Sources[i], want[i])
		}
	}
}

func TestCheck_EmptyTextFallsBack(t *testing.T) {
	t.Parallel()

	for name, resp := range map[string]*genai.GenerateContentResponse{
		"no candidates": {},
		"blank text":    textResponse("   "),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c, _ := gemini.New(context.Background(), "", gemini.WithGenerator(&fakeGenerator{resp: resp}))
			res, err := c.Check(context.Background(), "q")
			if err != nil {
				t.Fatal(err)
			}
			if res.Fact != factcheck.FallbackText {
				t.Errorf("Fact = %q, want fallback", res.Fact)
			}
		})
	}
}

func TestCheck_GenerateError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("quota exceeded")
	c, _ := gemini.New(context.Background(), "", gemini.WithGenerator(&fakeGenerator{err: sentinel}))
	if _, err := c.Check(context.Background(), "q"); !errors.Is(err, sentinel) {
		t.Errorf("got %v, want wrapped sentinel", err)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := gemini.New(context.Background(), ""); err == nil {
		t.Error("expected error for empty API key")
	}
}
