package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoJSON means the reply held no {...} span.
	ErrNoJSON = errors.New("no JSON object in model reply")
	// ErrInvalidJSON means the span was found but did not decode.
	ErrInvalidJSON = errors.New("invalid JSON in model reply")
)

// ExtractJSON returns the greedy span from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// DecodeJSON extracts the greedy JSON span from raw and unmarshals it into v.
func DecodeJSON(raw string, v any) error {
	span, ok := ExtractJSON(raw)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}
	return nil
}
