package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "API_BASE_URL", "")
	setEnv(t, "REQUEST_TIMEOUT", "")
	setEnv(t, "RETRAIN_TIMEOUT", "")
	setEnv(t, "ADMIN_EMAIL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultRetrainTimeout, cfg.RetrainTimeout)
	assert.Equal(t, DefaultAdminEmail, cfg.AdminEmail)
	assert.NotEmpty(t, cfg.SessionFile)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "API_BASE_URL", "https://api.example.com")
	setEnv(t, "REQUEST_TIMEOUT", "3s")
	setEnv(t, "RETRAIN_TIMEOUT", "10m")
	setEnv(t, "SESSION_FILE", "/tmp/epl-session.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RetrainTimeout)
	assert.Equal(t, "/tmp/epl-session.json", cfg.SessionFile)
}

func TestLoad_RelativeBaseNeedsOrigin(t *testing.T) {
	setEnv(t, "API_BASE_URL", "/api")
	setEnv(t, "APP_ORIGIN", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ORIGIN")
}

func TestLoad_RelativeBaseWithOrigin(t *testing.T) {
	setEnv(t, "API_BASE_URL", "/api")
	setEnv(t, "APP_ORIGIN", "https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api", cfg.BaseURL)
	assert.Equal(t, "https://app.example.com", cfg.AppOrigin)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		BaseURL:            "http://localhost:8000",
		RequestTimeout:     10 * time.Second,
		RetrainTimeout:     5 * time.Minute,
		SessionFile:        "/tmp/session.json",
		AdminEmail:         "admin@email.com",
		HealthPollInterval: 30 * time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: "API_BASE_URL is required",
		},
		{
			name:    "relative base without origin",
			mutate:  func(c *Config) { c.BaseURL = "/api" },
			wantErr: "APP_ORIGIN is required",
		},
		{
			name:    "relative origin",
			mutate:  func(c *Config) { c.BaseURL = "/api"; c.AppOrigin = "app.example.com" },
			wantErr: "APP_ORIGIN must be an absolute URL",
		},
		{
			name:    "non-positive request timeout",
			mutate:  func(c *Config) { c.RequestTimeout = 0 },
			wantErr: "REQUEST_TIMEOUT must be positive",
		},
		{
			name:    "retrain shorter than request timeout",
			mutate:  func(c *Config) { c.RetrainTimeout = time.Second },
			wantErr: "RETRAIN_TIMEOUT must be at least",
		},
		{
			name:    "admin email not an address",
			mutate:  func(c *Config) { c.AdminEmail = "admin" },
			wantErr: "ADMIN_EMAIL",
		},
		{
			name:    "non-positive poll interval",
			mutate:  func(c *Config) { c.HealthPollInterval = 0 },
			wantErr: "HEALTH_POLL_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
