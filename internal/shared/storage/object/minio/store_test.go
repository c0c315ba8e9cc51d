package minio

import (
	"context"
	"testing"
)

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(context.Background(), Options{Bucket: "documents"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	if _, err := New(context.Background(), Options{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
