package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{raw: "7d", want: 7 * 24 * time.Hour, ok: true},
		{raw: "15m", want: 15 * time.Minute, ok: true},
		{raw: "24h", want: 24 * time.Hour, ok: true},
		{raw: "0d", ok: false},
		{raw: "soon", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseDuration(tc.raw)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.raw, tc.ok, ok)
		}
		if ok && got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.raw, tc.want, got)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("OBJECT_STORE", "MinIO")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.ObjectStoreType != "minio" {
		t.Fatalf("expected minio store, got %q", cfg.ObjectStoreType)
	}
	if cfg.JWTExpiresIn != 7*24*time.Hour {
		t.Fatalf("expected 7d token lifetime, got %s", cfg.JWTExpiresIn)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("expected 10MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev-like config")
	}
}

func TestLoadEnvFilesDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEGALDOCS_TEST_A=file\nLEGALDOCS_TEST_B=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("LEGALDOCS_TEST_A", "process")
	t.Cleanup(func() { os.Unsetenv("LEGALDOCS_TEST_B") })

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("LEGALDOCS_TEST_A"); got != "process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if got := os.Getenv("LEGALDOCS_TEST_B"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
