// Package config loads client configuration from YAML files, environment
// variables and optional .env files. Environment variables win over file
// values; both win over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RateLimitConfig caps outgoing requests client-side. A zero rate
// disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig controls the log handler built by the logging package.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ExchangeConfig overrides adapter defaults for one exchange.
type ExchangeConfig struct {
	BaseURL   string           `yaml:"base_url"`
	Timeout   string           `yaml:"timeout"`
	RateLimit *RateLimitConfig `yaml:"rate_limit"`
}

// Config is the full client configuration. Durations are strings in Go
// duration syntax, e.g. "10s".
type Config struct {
	Timeout   string                    `yaml:"timeout"`
	RateLimit RateLimitConfig           `yaml:"rate_limit"`
	Logging   LoggingConfig             `yaml:"logging"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Timeout: "10s",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Exchanges: make(map[string]ExchangeConfig),
	}
}

// Load reads configuration from the YAML file at path (skipped when path
// is empty), then applies PERPDATA_* environment variables on top. A .env
// file in the working directory seeds the environment when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PERPDATA_TIMEOUT"); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv("PERPDATA_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimit.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("PERPDATA_RATE_LIMIT_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Burst = burst
		}
	}
	if v := os.Getenv("PERPDATA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PERPDATA_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PERPDATA_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("PERPDATA_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	for _, name := range []string{"binance", "bybit", "bitget", "okx"} {
		key := "PERPDATA_" + strings.ToUpper(name) + "_BASE_URL"
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if c.Exchanges == nil {
			c.Exchanges = make(map[string]ExchangeConfig)
		}
		exchange := c.Exchanges[name]
		exchange.BaseURL = v
		c.Exchanges[name] = exchange
	}
}

// Validate checks that every field parses. It does not reach the network.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			return fmt.Errorf("log output %q requires a file path", c.Logging.Output)
		}
	default:
		return fmt.Errorf("unknown log output %q", c.Logging.Output)
	}

	for name, exchange := range c.Exchanges {
		if exchange.Timeout == "" {
			continue
		}
		if _, err := time.ParseDuration(exchange.Timeout); err != nil {
			return fmt.Errorf("invalid timeout %q for exchange %s: %w", exchange.Timeout, name, err)
		}
	}
	return nil
}

// RequestTimeout returns the global per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ExchangeBaseURL returns the base URL override for an exchange, or empty
// when the adapter default applies.
func (c *Config) ExchangeBaseURL(name string) string {
	return c.Exchanges[name].BaseURL
}

// ExchangeTimeout returns the per-exchange deadline, falling back to the
// global one.
func (c *Config) ExchangeTimeout(name string) time.Duration {
	if raw := c.Exchanges[name].Timeout; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return c.RequestTimeout()
}

// ExchangeRateLimit returns the per-exchange rate limit, falling back to
// the global one.
func (c *Config) ExchangeRateLimit(name string) (rps float64, burst int) {
	if limit := c.Exchanges[name].RateLimit; limit != nil {
		return limit.RequestsPerSecond, limit.Burst
	}
	return c.RateLimit.RequestsPerSecond, c.RateLimit.Burst
}
