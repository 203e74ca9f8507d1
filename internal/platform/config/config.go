package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs from the environment so wiring
// stays lean and testable.
type Config struct {
	Addr          string
	PostgresDSN   string
	JWTSigningKey string

	// FederationCode prefixes every issued registration number.
	FederationCode string

	Redis  RedisConfig
	Export ExportConfig
}

// RedisConfig configures the durable export queue. An empty URL means the
// queue backend is not provisioned and the export pipeline runs disabled.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ExportConfig configures the regulatory export pipeline.
type ExportConfig struct {
	// Endpoint is the base URL of the external regulatory system. Empty
	// means exports degrade to the disabled state.
	Endpoint string
	// Token is an optional bearer token for the export call.
	Token string
	// Timeout bounds each outbound export call.
	Timeout time.Duration
	// Concurrency sizes the worker pool.
	Concurrency int
	// MaxAttempts caps retries per transfer before the job is dropped.
	MaxAttempts int
	// RetryBase is the first retry delay; later delays double each attempt.
	RetryBase time.Duration
	// WebhookSecret authenticates inbound reconciliation callbacks.
	WebhookSecret string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("FEDOFFICE_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("FEDOFFICE_POSTGRES_DSN"),
		JWTSigningKey:  os.Getenv("FEDOFFICE_JWT_SIGNING_KEY"),
		FederationCode: envOr("FEDOFFICE_FEDERATION_CODE", "FAZ"),
		Redis: RedisConfig{
			URL:          os.Getenv("FEDOFFICE_REDIS_URL"),
			PoolSize:     envIntOr("FEDOFFICE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("FEDOFFICE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("FEDOFFICE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("FEDOFFICE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("FEDOFFICE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Export: ExportConfig{
			Endpoint:      os.Getenv("FEDOFFICE_TMS_ENDPOINT"),
			Token:         os.Getenv("FEDOFFICE_TMS_TOKEN"),
			Timeout:       envDurationOr("FEDOFFICE_TMS_TIMEOUT", 15*time.Second),
			Concurrency:   envIntOr("FEDOFFICE_EXPORT_CONCURRENCY", 2),
			MaxAttempts:   envIntOr("FEDOFFICE_EXPORT_MAX_ATTEMPTS", 5),
			RetryBase:     envDurationOr("FEDOFFICE_EXPORT_RETRY_BASE", time.Second),
			WebhookSecret: os.Getenv("FEDOFFICE_TMS_WEBHOOK_SECRET"),
		},
	}
	if cfg.JWTSigningKey == "" {
		// Development fallback - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
