// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
)

// Config holds all application configuration.
type Config struct {
	Port        string `env:"PORT"         envDefault:"3000"`
	FrontendURL string `env:"FRONTEND_URL"`
	AppEnv      string `env:"APP_ENV"`

	BotToken string `env:"BOT_TOKEN"`
	GuildID  string `env:"GUILD_ID"`

	Ready    ReadyConfig
	Platform PlatformConfig
	Audit    AuditConfig
	Limits   RateLimitConfig

	GRPCHealthPort string `env:"GRPC_HEALTH_PORT"`
	OTelEndpoint   string `env:"OTEL_ENDPOINT"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// ReadyConfig controls how long startup waits for the bot handshake.
type ReadyConfig struct {
	PollInterval time.Duration `env:"READY_POLL_INTERVAL" envDefault:"1s"`
	Timeout      time.Duration `env:"READY_TIMEOUT"       envDefault:"0s"` // 0 = wait forever
}

// PlatformConfig controls retries against the chat platform API.
type PlatformConfig struct {
	MaxRetries     int           `env:"PLATFORM_MAX_RETRIES"      envDefault:"3"`
	RetryBaseDelay time.Duration `env:"PLATFORM_RETRY_BASE_DELAY" envDefault:"250ms"`
}

// AuditConfig controls the mutation audit trail.
type AuditConfig struct {
	Enabled   bool          `env:"AUDIT_ENABLED"   envDefault:"true"`
	DBPath    string        `env:"DB_PATH"         envDefault:"./data/audit.db"`
	Retention time.Duration `env:"AUDIT_RETENTION" envDefault:"720h"`
}

// RateLimitConfig controls the per-user limiter on mutation routes.
type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"2"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.GuildID == "" {
		return fmt.Errorf("GUILD_ID is required")
	}
	if _, err := snowflake.Parse(c.GuildID); err != nil {
		return fmt.Errorf("GUILD_ID must be a snowflake: %w", err)
	}
	if c.Ready.PollInterval <= 0 {
		return fmt.Errorf("READY_POLL_INTERVAL must be > 0")
	}
	if c.Ready.Timeout < 0 {
		return fmt.Errorf("READY_TIMEOUT cannot be negative")
	}
	if c.Platform.MaxRetries <= 0 {
		return fmt.Errorf("PLATFORM_MAX_RETRIES must be > 0")
	}
	if c.Audit.Enabled && c.Audit.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when AUDIT_ENABLED is set")
	}
	if c.Limits.RPS <= 0 || c.Limits.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if c.AppEnv != "" {
		return c.AppEnv == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the browser portal.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}
