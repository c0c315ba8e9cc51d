package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func TestExtractJSONGreedy(t *testing.T) {
	raw := "Sure! ```json\n{\"a\": {\"b\": 1}}\n``` trailing }"
	span, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected a span")
	}
	if !strings.HasPrefix(span, "{\"a\"") || !strings.HasSuffix(span, "}") {
		t.Fatalf("unexpected span %q", span)
	}
	if _, ok := ExtractJSON("no braces here"); ok {
		t.Fatalf("expected no span")
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("plain text", &out); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if err := DecodeJSON("{not json}", &out); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
	if err := DecodeJSON(`answer: {"answer":"1000 USD"}`, &out); err != nil || out["answer"] != "1000 USD" {
		t.Fatalf("decode failed: %v %v", out, err)
	}
}

func TestQueryPromptTruncatesAndEmbeds(t *testing.T) {
	text := strings.Repeat("a", QueryTextLimit+50)
	prompt := QueryPrompt("Lease", text, "What is the rent?", "unknown", "en")
	if !strings.Contains(prompt, `document "Lease"`) {
		t.Fatalf("title missing")
	}
	if !strings.Contains(prompt, "general understanding and overview") {
		t.Fatalf("expected general focus fallback")
	}
	if strings.Contains(prompt, strings.Repeat("a", QueryTextLimit+1)) {
		t.Fatalf("text not truncated")
	}
	if !strings.Contains(prompt, " ...") {
		t.Fatalf("expected truncation marker")
	}
	if !strings.Contains(prompt, "Question: What is the rent?") {
		t.Fatalf("question missing")
	}
}

func TestClausePromptShortTextHasNoMarker(t *testing.T) {
	prompt := ClauseExtractionPrompt("short text", "legal", "fr")
	if strings.Contains(prompt, "short text ...") {
		t.Fatalf("short text must not be marked truncated")
	}
	if !strings.Contains(prompt, "liability, indemnification") || !strings.Contains(prompt, `"language": "fr"`) {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}
}

type flaky struct {
	failures int
	err      error
	calls    int
}

func (f *flaky) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func TestRetryingRetriesOnceOnTransient(t *testing.T) {
	base := &flaky{failures: 1, err: &googleapi.Error{Code: 503}}
	r := WithRetry(base)
	r.delay = time.Millisecond

	out, err := r.Generate(context.Background(), "p")
	if err != nil || out != "ok" {
		t.Fatalf("expected success after retry, got %q %v", out, err)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
}

func TestRetryingGivesUpAfterSecondFailure(t *testing.T) {
	base := &flaky{failures: 5, err: &googleapi.Error{Code: 429}}
	r := WithRetry(base)
	r.delay = time.Millisecond

	if _, err := r.Generate(context.Background(), "p"); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", base.calls)
	}
}

func TestRetryingDoesNotRetryPermanent(t *testing.T) {
	base := &flaky{failures: 5, err: &googleapi.Error{Code: 400}}
	r := WithRetry(base)
	r.delay = time.Millisecond

	if _, err := r.Generate(context.Background(), "p"); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected 1 call, got %d", base.calls)
	}
}

func TestConfigured(t *testing.T) {
	if Configured(WithRetry(nil)) {
		t.Fatalf("nil base must be unconfigured")
	}
	if !Configured(WithRetry(&Scripted{})) {
		t.Fatalf("scripted client counts as configured")
	}
	if _, err := WithRetry(nil).Generate(context.Background(), "p"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
