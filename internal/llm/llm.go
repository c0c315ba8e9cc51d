package llm

import (
	"context"
	"errors"
)

// Client abstracts the generative model behind the query, clause and feedback flows.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrNotConfigured is returned when no model credentials are available.
var ErrNotConfigured = errors.New("AI client not configured")

// Unconfigured is used when GEMINI_API_KEY is missing. Every call fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// Configured reports whether c can reach a real model.
func Configured(c Client) bool {
	if c == nil {
		return false
	}
	if r, ok := c.(*Retrying); ok {
		return Configured(r.base)
	}
	_, unconfigured := c.(Unconfigured)
	return !unconfigured
}
