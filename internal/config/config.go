package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Sync server
	Host         string   `mapstructure:"HOST"`
	Port         string   `mapstructure:"PORT"`
	DataFile     string   `mapstructure:"DATA_FILE"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit    string   `mapstructure:"BODY_LIMIT"`
	RateLimitRPS float64  `mapstructure:"RATE_LIMIT_RPS"`

	// Device client
	ServerURL           string        `mapstructure:"SERVER_URL"`
	LocalStorePath      string        `mapstructure:"LOCAL_STORE_PATH"`
	SyncTimeout         time.Duration `mapstructure:"SYNC_TIMEOUT"`
	ReconcileInterval   time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	PushConcurrency     int           `mapstructure:"PUSH_CONCURRENCY"`
	OutboxFlushInterval time.Duration `mapstructure:"OUTBOX_FLUSH_INTERVAL"`
}

var keys = []string{
	"ENV", "LOG_LEVEL",
	"HOST", "PORT", "DATA_FILE", "CORS_ORIGINS", "BODY_LIMIT", "RATE_LIMIT_RPS",
	"SERVER_URL", "LOCAL_STORE_PATH", "SYNC_TIMEOUT", "RECONCILE_INTERVAL",
	"PUSH_CONCURRENCY", "OUTBOX_FLUSH_INTERVAL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "3001")
	v.SetDefault("DATA_FILE", "server-data.json")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("SERVER_URL", "http://localhost:3001")
	v.SetDefault("LOCAL_STORE_PATH", ".pddiagnosys/local.json")
	v.SetDefault("SYNC_TIMEOUT", "10s")
	v.SetDefault("RECONCILE_INTERVAL", "5s")
	v.SetDefault("PUSH_CONCURRENCY", 8)
	v.SetDefault("OUTBOX_FLUSH_INTERVAL", "2s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = splitList(origins)
		}
	} else {
		cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Validate checks the settings that would otherwise fail late, at the first
// request or tick.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DataFile == "" {
		return fmt.Errorf("DATA_FILE is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SERVER_URL must be an http or https URL, got %q", c.ServerURL)
	}
	if c.LocalStorePath == "" {
		return fmt.Errorf("LOCAL_STORE_PATH is required")
	}
	if c.SyncTimeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive, got %s", c.SyncTimeout)
	}
	if c.ReconcileInterval < time.Second {
		return fmt.Errorf("RECONCILE_INTERVAL must be at least 1s, got %s", c.ReconcileInterval)
	}
	if c.OutboxFlushInterval <= 0 {
		return fmt.Errorf("OUTBOX_FLUSH_INTERVAL must be positive, got %s", c.OutboxFlushInterval)
	}
	if c.PushConcurrency < 1 {
		return fmt.Errorf("PUSH_CONCURRENCY must be at least 1, got %d", c.PushConcurrency)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
