package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	App      AppConfig
	API      APIConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Retry    RetryConfig
	Log      LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// APIConfig holds REST backend connection settings
type APIConfig struct {
	BaseURL string        // e.g. http://localhost:8080/api/v1
	Timeout time.Duration // per-request timeout
}

// AuthConfig holds session persistence settings
type AuthConfig struct {
	TokenStorePath string // path of the durable session file
	RefreshPath    string // refresh endpoint, relative to BaseURL
}

// RealtimeConfig holds websocket settings
type RealtimeConfig struct {
	URL                  string // e.g. ws://localhost:8080/ws
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	HandshakeTimeout     time.Duration
}

// RetryConfig holds read-after-write retry and polling budgets
type RetryConfig struct {
	MaxAttempts  int           // refresh-with-retry budget
	BaseDelay    time.Duration // delay grows linearly: attempt * BaseDelay
	PollAttempts int           // status polling budget
	PollInterval time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with ERP_CLIENT_ prefix (e.g. ERP_CLIENT_API_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.erpctl")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		API: APIConfig{
			BaseURL: v.GetString("api.base_url"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Auth: AuthConfig{
			TokenStorePath: v.GetString("auth.token_store_path"),
			RefreshPath:    v.GetString("auth.refresh_path"),
		},
		Realtime: RealtimeConfig{
			URL:                  v.GetString("realtime.url"),
			MaxReconnectAttempts: v.GetInt("realtime.max_reconnect_attempts"),
			ReconnectBaseDelay:   v.GetDuration("realtime.reconnect_base_delay"),
			HandshakeTimeout:     v.GetDuration("realtime.handshake_timeout"),
		},
		Retry: RetryConfig{
			MaxAttempts:  v.GetInt("retry.max_attempts"),
			BaseDelay:    v.GetDuration("retry.base_delay"),
			PollAttempts: v.GetInt("retry.poll_attempts"),
			PollInterval: v.GetDuration("retry.poll_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erpctl"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080/api/v1"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Auth.TokenStorePath == "" {
		cfg.Auth.TokenStorePath = ".erpctl/session.json"
	}
	if cfg.Auth.RefreshPath == "" {
		cfg.Auth.RefreshPath = "/auth/refresh"
	}
	if cfg.Realtime.URL == "" {
		cfg.Realtime.URL = "ws://localhost:8080/ws"
	}
	if cfg.Realtime.MaxReconnectAttempts == 0 {
		cfg.Realtime.MaxReconnectAttempts = 5
	}
	if cfg.Realtime.ReconnectBaseDelay == 0 {
		cfg.Realtime.ReconnectBaseDelay = time.Second
	}
	if cfg.Realtime.HandshakeTimeout == 0 {
		cfg.Realtime.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.PollAttempts == 0 {
		cfg.Retry.PollAttempts = 5
	}
	if cfg.Retry.PollInterval == 0 {
		cfg.Retry.PollInterval = time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https, got %q", u.Scheme)
	}

	ws, err := url.Parse(c.Realtime.URL)
	if err != nil || ws.Scheme == "" || ws.Host == "" {
		return fmt.Errorf("realtime.url must be an absolute URL, got %q", c.Realtime.URL)
	}
	if ws.Scheme != "ws" && ws.Scheme != "wss" {
		return fmt.Errorf("realtime.url scheme must be ws or wss, got %q", ws.Scheme)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if c.Retry.PollAttempts < 1 {
		return fmt.Errorf("retry.poll_attempts must be positive")
	}

	if c.App.Env == "production" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use https in production")
	}

	return nil
}
