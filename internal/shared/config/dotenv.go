package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"legaldocs-backend/internal/shared/telemetry"
)

// loadEnvFiles loads KEY=VALUE files for local development. Variables already
// present in the process environment are not overridden.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			telemetry.Warn("config.env_file_failed", map[string]any{"path": path, "error": err.Error()})
		}
	}
}
