// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Upstream realtime voice model. When disabled the conversation socket
	// runs in echo mode.
	UseRealtime   bool
	OpenAIAPIKey  string
	OpenAIBaseURL string
	RealtimeModel string
	EchoDelay     time.Duration

	// Vector store.
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string

	// Image object store.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string
	ImageMaxBytes  int64

	// Session lifecycle.
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	// CORS (empty => allow all origins).
	CORSAllowedOrigins []string

	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	host := envOr("HOST", "0.0.0.0")
	port := envIntOr("PORT", 3000)

	cfg := Config{
		Addr:                 fmt.Sprintf("%s:%d", host, port),
		UseRealtime:          envBoolOr("USE_OPENAI_REALTIME", false),
		OpenAIAPIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:        envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		RealtimeModel:        strings.TrimSpace(os.Getenv("OPENAI_REALTIME_MODEL")),
		EchoDelay:            envDurationOr("ECHO_DELAY", 3*time.Second),
		QdrantHost:           envOr("QDRANT_HOST", "localhost"),
		QdrantPort:           envIntOr("QDRANT_PORT", 6333),
		QdrantAPIKey:         strings.TrimSpace(os.Getenv("QDRANT_API_KEY")),
		MinioEndpoint:        envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:       envOr("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:       envOr("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:          envBoolOr("MINIO_USE_SSL", false),
		MinioBucket:          envOr("MINIO_BUCKET_IMAGE", "automobiles"),
		ImageMaxBytes:        envInt64Or("IMAGE_MAX_BYTES", 5<<20), // 5 MiB
		SessionTTL:           envDurationOr("SESSION_TTL", 5*time.Minute),
		SessionSweepInterval: envDurationOr("SESSION_SWEEP_INTERVAL", 60*time.Second),
		CORSAllowedOrigins:   splitCSV(os.Getenv("CORS_ORIGINS")),
		ShutdownGracePeriod:  envDurationOr("SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if cfg.UseRealtime {
		if cfg.RealtimeModel == "" {
			return Config{}, fmt.Errorf("OPENAI_REALTIME_MODEL must be set when USE_OPENAI_REALTIME is true")
		}
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY must be set when USE_OPENAI_REALTIME is true")
		}
	}
	if cfg.ImageMaxBytes <= 0 {
		return Config{}, fmt.Errorf("IMAGE_MAX_BYTES must be > 0")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be > 0")
	}
	if cfg.SessionSweepInterval <= 0 {
		return Config{}, fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	return cfg, nil
}

// QdrantEndpoint is the REST base URL of the vector store.
func (c Config) QdrantEndpoint() string {
	return fmt.Sprintf("http://%s:%d", c.QdrantHost, c.QdrantPort)
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
