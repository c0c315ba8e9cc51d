package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"legaldocs-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	Version         string
	CORSAllowOrigin []string

	DatabaseURL string
	RedisURL    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool

	MeiliURL    string
	MeiliAPIKey string

	SQSQueueURL string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	JWTSecret       string
	JWTExpiresIn    time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	AdminEmails     []string

	MaxUploadBytes int64

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	ClientURL          string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
	}
	if env == "production" && os.Getenv("JWT_SECRET") == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "JWT_SECRET", "env": env})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		Version:         getEnv("APP_VERSION", "1.0.0"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		DatabaseURL: dbURL,
		RedisURL:    getEnv("REDIS_URL", ""),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORAGE_DIR", "./uploads"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "documents"),
		MinioUseSSL:     getBool("MINIO_USE_SSL", false),

		MeiliURL:    getEnv("MEILI_URL", ""),
		MeiliAPIKey: getEnv("MEILI_API_KEY", ""),

		SQSQueueURL: getEnv("SQS_QUEUE_URL", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTimeout: time.Duration(getInt("GEMINI_TIMEOUT_SECONDS", 60)) * time.Second,

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiresIn:    getDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:      getInt("BCRYPT_COST", 10),
		AdminEmails:     splitAndTrim(getEnv("ADMIN_EMAILS", "")),

		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10*1024*1024)),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		ClientURL:          getEnv("CLIENT_URL", "http://localhost:3000"),
	}
}

// IsDevLike reports whether the environment tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, ok := ParseDuration(raw)
	if !ok {
		return def
	}
	return d
}

// ParseDuration accepts Go durations plus a day suffix ("7d").
func ParseDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}
