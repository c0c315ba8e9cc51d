package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"legaldocs-backend/internal/shared/metrics"
	"legaldocs-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrying wraps a Client with one retry on transient failures and records call metrics.
type Retrying struct {
	base  Client
	delay time.Duration
}

// WithRetry wraps base. A nil base yields Unconfigured.
func WithRetry(base Client) *Retrying {
	if base == nil {
		base = Unconfigured{}
	}
	return &Retrying{base: base, delay: retryBaseDelay}
}

func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := r.call(ctx, prompt)
	if err == nil || !IsTransient(err) {
		return out, err
	}

	telemetry.Warn("ai.retry", map[string]any{"attempt": 1, "error": err.Error()})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return r.call(ctx, prompt)
}

func (r *Retrying) call(ctx context.Context, prompt string) (string, error) {
	if !Configured(r.base) {
		return r.base.Generate(ctx, prompt)
	}
	start := time.Now()
	metrics.IncAICalls()
	out, err := r.base.Generate(ctx, prompt)
	metrics.ObserveAIMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncAIFailures()
	}
	return out, err
}

// IsTransient reports whether err is worth one more attempt: timeouts, 429 and 5xx.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"resource_exhausted", "unavailable", "deadline exceeded", "internal error",
		"error 429", "error 500", "error 502", "error 503", "error 504",
		"connection reset", "connection refused", "broken pipe", "tls handshake timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
