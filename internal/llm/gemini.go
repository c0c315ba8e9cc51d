package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmptyReply is returned when the model produced no text parts.
var ErrEmptyReply = errors.New("empty model reply")

// Gemini implements Client with Google's generative-ai-go SDK.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	timeout time.Duration
}

// NewGemini builds a client with the fixed sampling parameters used for every prompt.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	gm := client.GenerativeModel(model)
	gm.SetTemperature(0.1)
	gm.SetTopK(40)
	gm.SetTopP(0.95)
	gm.SetMaxOutputTokens(8192)

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{client: client, model: gm, name: model, timeout: timeout}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.name
}

// Generate sends a single-turn prompt and returns the concatenated text of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate model=%s: %w", g.name, err)
	}
	text := replyText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
