package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "erpctl", cfg.App.Name)
	assert.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/auth/refresh", cfg.Auth.RefreshPath)
	assert.Equal(t, 5, cfg.Realtime.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectBaseDelay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Retry.PollAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ERP_CLIENT_API_BASE_URL", "https://erp.example.com/api/v1")
	t.Setenv("ERP_CLIENT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.API.BaseURL = "/api/v1" },
			wantErr: "api.base_url",
		},
		{
			name:    "bad api scheme",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://host/api" },
			wantErr: "scheme",
		},
		{
			name:    "bad realtime scheme",
			mutate:  func(c *Config) { c.Realtime.URL = "http://host/ws" },
			wantErr: "realtime.url scheme",
		},
		{
			name:    "zero retry budget",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = -1 },
			wantErr: "retry.max_attempts",
		},
		{
			name: "plain http in production",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.API.BaseURL = "http://erp.internal/api/v1"
			},
			wantErr: "https in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
