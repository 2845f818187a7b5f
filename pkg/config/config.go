package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds turn-controller server configuration, loaded from the
// environment.
type Config struct {
	Port     string
	LogLevel string

	SessionStoreBackend string // "memory" | "postgres"
	SessionStoreDSN     string

	MemoryStoreBackend string // "memory" | "sqlite"
	MemoryStoreDSN     string

	CollisionBackend string // "memory" | "redis"
	CollisionRedisURL string

	ArtifactStoreBackend string // "file" | "s3" | "gcs"
	ArtifactStoreRoot    string
	ArtifactStoreBucket  string

	MaxTokensDefault       int64
	ThresholdTokensDefault int64

	ProfilesDir string

	SandboxDefaultTimeout   time.Duration
	SandboxDefaultMemoryMB  int

	OTLPEndpoint string
	ServiceName  string
}

// Load loads configuration from environment variables, applying the same
// defaulting shape the rest of the pack uses: read, fall back to a sane
// default, never fail on a missing variable.
func Load() *Config {
	return &Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envOr("LOG_LEVEL", "INFO"),

		SessionStoreBackend: envOr("SESSION_STORE_BACKEND", "memory"),
		SessionStoreDSN:     envOr("SESSION_STORE_DSN", "postgres://turnctl@localhost:5432/turnctl?sslmode=disable"),

		MemoryStoreBackend: envOr("MEMORY_STORE_BACKEND", "memory"),
		MemoryStoreDSN:     envOr("MEMORY_STORE_DSN", "file:turnctl_memory.db?cache=shared"),

		CollisionBackend:  envOr("COLLISION_BACKEND", "memory"),
		CollisionRedisURL: envOr("COLLISION_REDIS_URL", "redis://localhost:6379/0"),

		ArtifactStoreBackend: envOr("ARTIFACT_STORE_BACKEND", "file"),
		ArtifactStoreRoot:    envOr("ARTIFACT_STORE_ROOT", "./.turnctl-artifacts"),
		ArtifactStoreBucket:  envOr("ARTIFACT_STORE_BUCKET", ""),

		MaxTokensDefault:       envInt64("BUDGET_MAX_TOKENS", 200000),
		ThresholdTokensDefault: envInt64("BUDGET_THRESHOLD_TOKENS", 180000),

		ProfilesDir: envOr("POLICY_PROFILES_DIR", "./profiles"),

		SandboxDefaultTimeout:  envDuration("SANDBOX_DEFAULT_TIMEOUT_MS", 5*time.Second),
		SandboxDefaultMemoryMB: int(envInt64("SANDBOX_DEFAULT_MEMORY_MB", 64)),

		OTLPEndpoint: envOr("OTLP_ENDPOINT", ""),
		ServiceName:  envOr("OTEL_SERVICE_NAME", "turnctl"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
