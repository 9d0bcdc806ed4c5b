// Package gemini implements tts.Provider with the Gemini text-to-speech
// models through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"

	"google.golang.org/genai"

	"github.com/MrWong99/quizhost/pkg/audio"
	"github.com/MrWong99/quizhost/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const defaultModel = "gemini-2.5-flash-preview-tts"

// ErrNoAudio is returned when the response carries no inline audio.
var ErrNoAudio = errors.New("gemini tts: response contained no audio")

// ContentGenerator is the subset of [genai.Models] used by the provider.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the TTS model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithVoice sets the default prebuilt voice.
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithGenerator replaces the genai client. Used in tests.
func WithGenerator(g ContentGenerator) Option {
	return func(p *Provider) { p.gen = g }
}

// Provider implements tts.Provider for Gemini TTS.
type Provider struct {
	gen   ContentGenerator
	model string
	voice string
}

// New creates a Provider. A genai client is created for apiKey unless
// [WithGenerator] is given.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	p := &Provider{
		model: defaultModel,
		voice: tts.DefaultVoice,
	}
	for _, o := range opts {
		o(p)
	}
	if p.gen == nil {
		if apiKey == "" {
			return nil, errors.New("gemini tts: apiKey must not be empty")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini tts: new client: %w", err)
		}
		p.gen = client.Models
	}
	return p, nil
}

// Synthesize renders the summary narration.
func (p *Provider) Synthesize(ctx context.Context, req tts.SummaryRequest) (tts.Speech, error) {
	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	resp, err := p.gen.GenerateContent(ctx, p.model, genai.Text(tts.FormatSummary(req)), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return tts.Speech{}, fmt.Errorf("gemini tts: generate: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return tts.Speech{}, ErrNoAudio
	}
	return tts.Speech{PCM: blob.Data, SampleRate: sampleRate(blob.MIMEType)}, nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	for _, part := range c.Content.Parts {
		if part != nil && part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

// sampleRate reads the rate parameter of a MIME type such as
// "audio/L16;codec=pcm;rate=24000", defaulting to 24 kHz.
func sampleRate(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return audio.OutputSampleRate
	}
	if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
		return r
	}
	return audio.OutputSampleRate
}
