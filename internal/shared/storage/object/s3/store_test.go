package s3

import (
	"strings"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "documents/u1/file.pdf", want: "documents/u1/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "documents/u1/file.pdf", want: "root/documents/u1/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "documents/u1/file.pdf", want: "root/documents/u1/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/documents/u1/file.pdf", want: "root/documents/u1/file.pdf"},
		{name: "empty key", prefix: "root", key: "", want: "root"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestStripPrefixRoundTrip(t *testing.T) {
	key := "documents/u1/file.pdf"
	if got := stripPrefix("root/sub", applyPrefix("root/sub", key)); got != key {
		t.Fatalf("stripPrefix returned %q", got)
	}
	if got := stripPrefix("", key); got != key {
		t.Fatalf("stripPrefix with empty prefix returned %q", got)
	}
}

func TestCountingReader(t *testing.T) {
	c := &countingReader{r: strings.NewReader("hello world")}
	buf := make([]byte, 4)
	for {
		if _, err := c.Read(buf); err != nil {
			break
		}
	}
	if c.n != 11 {
		t.Fatalf("expected 11 bytes counted, got %d", c.n)
	}
}
