// Package config provides environment-driven configuration for the proposal service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL     Secret
	Port            string
	ListenHost      string
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
	APIKeys         []Secret
	LeaseTimeout    time.Duration
	DBLockTimeout   time.Duration
	NotifyQueueSize int
	StaleAfter      time.Duration
	DBMaxConns      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: Secret(envOrDefault("DATABASE_URL", "")),
		Port:        envOrDefault("PORT", "3040"),
		ListenHost:  envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:    strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(envOrDefault("LOG_FORMAT", "json")),
	}

	// API_KEY may hold several comma-separated keys so one can be rotated
	// while the other is still in use.
	for _, k := range splitList(os.Getenv("API_KEY")) {
		cfg.APIKeys = append(cfg.APIKeys, Secret(k))
	}

	cfg.CORSOrigins = splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3002"))

	var err error

	if cfg.LeaseTimeout, err = envDuration("LEASE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.DBLockTimeout, err = envDuration("DB_LOCK_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}

	if cfg.StaleAfter, err = envDuration("STALE_AFTER", 336*time.Hour); err != nil {
		return nil, err
	}

	queueSize, err := strconv.Atoi(envOrDefault("NOTIFY_QUEUE_SIZE", "1000"))
	if err != nil || queueSize < 1 || queueSize > 100000 {
		return nil, fmt.Errorf("NOTIFY_QUEUE_SIZE must be an integer between 1 and 100000")
	}
	cfg.NotifyQueueSize = queueSize

	maxConns, err := strconv.Atoi(envOrDefault("DB_MAX_CONNS", "20"))
	if err != nil || maxConns < 2 || maxConns > 200 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be an integer between 2 and 200")
	}
	cfg.DBMaxConns = maxConns

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// KeyValues returns the accepted API keys as plain strings.
func (c *Config) KeyValues() []string {
	keys := make([]string, len(c.APIKeys))
	for i, k := range c.APIKeys {
		keys[i] = k.Value()
	}

	return keys
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 5s or 336h", key)
	}

	return d, nil
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}
