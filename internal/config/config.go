// Package config loads the demo server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Addr     string
	LogLevel string

	// Mode is "middleware" (blanket protection with exemptions) or
	// "manual" (per-handler protection).
	Mode string

	// Policy is "form", "header" or "both".
	Policy string

	// Storage is "cookie", "session" or "redis".
	Storage string

	// TokenSecret switches to hashed tokens when set.
	TokenSecret string

	CookieSecure bool
	CookieMaxAge time.Duration

	// SessionKey authenticates gorilla cookie sessions (storage "session").
	SessionKey string

	// RedisURL is used by storage "redis".
	RedisURL string

	MetricsEnabled bool
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Addr:     getEnv("ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Mode:        strings.ToLower(getEnv("CSRF_MODE", "middleware")),
		Policy:      strings.ToLower(getEnv("CSRF_POLICY", "form")),
		Storage:     strings.ToLower(getEnv("CSRF_STORAGE", "cookie")),
		TokenSecret: getEnv("CSRF_SECRET", ""),

		CookieSecure: getEnvBool("CSRF_COOKIE_SECURE", false),
		CookieMaxAge: getEnvDuration("CSRF_COOKIE_MAX_AGE", 0),

		SessionKey: getEnv("SESSION_KEY", ""),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings and their dependencies.
func (c *Config) Validate() error {
	switch c.Mode {
	case "middleware", "manual":
	default:
		return fmt.Errorf("CSRF_MODE must be either 'middleware' or 'manual', got: %s", c.Mode)
	}

	switch c.Policy {
	case "form", "header", "both":
	default:
		return fmt.Errorf("CSRF_POLICY must be one of 'form', 'header' or 'both', got: %s", c.Policy)
	}

	switch c.Storage {
	case "cookie":
	case "session":
		if len(c.SessionKey) < 32 {
			return fmt.Errorf("SESSION_KEY of at least 32 bytes is required when CSRF_STORAGE is 'session'")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CSRF_STORAGE is 'redis'")
		}
	default:
		return fmt.Errorf("CSRF_STORAGE must be one of 'cookie', 'session' or 'redis', got: %s", c.Storage)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
