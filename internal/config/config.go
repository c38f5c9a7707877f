// Package config handles client configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration
type Config struct {
	// Backend target. Either an absolute origin ("http://localhost:8000")
	// or a path relative to AppOrigin ("/api").
	BaseURL   string
	AppOrigin string // Own origin; only consulted when BaseURL is relative

	// Timeouts
	RequestTimeout time.Duration // Interactive calls
	RetrainTimeout time.Duration // Long-running retrain invocation

	// Session persistence
	SessionFile string

	// Privilege determination (see DESIGN.md: role-from-email heuristic)
	AdminEmail string

	// Admin health probe cadence
	HealthPollInterval time.Duration

	// Observability
	LogLevel     string
	LogFormat    string // "text" or "json"
	MetricsAddr  string // When set, serve Prometheus metrics here
	OTLPEndpoint string // When set, export traces over OTLP/gRPC
}

// Defaults
const (
	DefaultBaseURL            = "http://localhost:8000"
	DefaultRequestTimeout     = 10 * time.Second
	DefaultRetrainTimeout     = 5 * time.Minute
	DefaultAdminEmail         = "admin@email.com"
	DefaultHealthPollInterval = 30 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:            getEnv("API_BASE_URL", DefaultBaseURL),
		AppOrigin:          os.Getenv("APP_ORIGIN"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		RetrainTimeout:     getEnvDuration("RETRAIN_TIMEOUT", DefaultRetrainTimeout),
		SessionFile:        getEnv("SESSION_FILE", defaultSessionFile()),
		AdminEmail:         getEnv("ADMIN_EMAIL", DefaultAdminEmail),
		HealthPollInterval: getEnvDuration("HEALTH_POLL_INTERVAL", DefaultHealthPollInterval),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %w", err)
	}

	if !u.IsAbs() {
		// Relative deployment mode: the backend lives under our own origin
		if c.AppOrigin == "" {
			return fmt.Errorf("APP_ORIGIN is required when API_BASE_URL is a relative path")
		}
		o, err := url.Parse(c.AppOrigin)
		if err != nil || !o.IsAbs() {
			return fmt.Errorf("APP_ORIGIN must be an absolute URL")
		}
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.RetrainTimeout < c.RequestTimeout {
		return fmt.Errorf("RETRAIN_TIMEOUT must be at least REQUEST_TIMEOUT")
	}
	if c.SessionFile == "" {
		return fmt.Errorf("SESSION_FILE is required")
	}
	if c.AdminEmail == "" || !strings.Contains(c.AdminEmail, "@") {
		return fmt.Errorf("ADMIN_EMAIL must be an email address")
	}
	if c.HealthPollInterval <= 0 {
		return fmt.Errorf("HEALTH_POLL_INTERVAL must be positive")
	}

	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".epl-predictor", "session.json")
	}
	return filepath.Join(home, ".epl-predictor", "session.json")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
