package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"

	"prorata/internal/core"
)

type Config struct {
	// Storage
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/prorata.db"`

	// Currencies
	BaseCurrency   string        `env:"BASE_CURRENCY" envDefault:"EUR"`
	RatesURL       string        `env:"RATES_URL" envDefault:"https://api.frankfurter.app"`
	RatesTimeout   time.Duration `env:"RATES_TIMEOUT" envDefault:"5s"`
	RatesCacheSize int           `env:"RATES_CACHE_SIZE" envDefault:"256"`
	RatesCacheTTL  time.Duration `env:"RATES_CACHE_TTL" envDefault:"24h"`

	// AMQP, optional
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"prorata"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"expense_events"`

	// Statistics
	ProrationConvention string `env:"PRORATION_CONVENTION" envDefault:"exclusive-start"`
	StatsConcurrency    int    `env:"STATS_CONCURRENCY" envDefault:"4"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Worker month snapshots, optional
	ReportsDir string `env:"REPORTS_DIR"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Convention returns the parsed proration convention. Call Validate first.
func (c *Config) Convention() core.Convention {
	conv, _ := core.ParseConvention(c.ProrationConvention)
	return conv
}

// Level returns the configured slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel accepts debug, info, warn or error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
	return lvl, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if len(c.BaseCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid base currency '%s': must be a three letter code", c.BaseCurrency))
	}

	if parsedURL, err := url.Parse(c.RatesURL); err != nil || c.RatesURL == "" {
		errors = append(errors, fmt.Sprintf("invalid rates URL '%s'", c.RatesURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid rates URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.RatesTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be positive", c.RatesTimeout))
	}
	if c.RatesCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid rates cache size %d: must be at least 1", c.RatesCacheSize))
	}
	if c.RatesCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates cache TTL %v: must be at least 1 minute", c.RatesCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := core.ParseConvention(c.ProrationConvention); err != nil {
		errors = append(errors, err.Error())
	}

	if c.StatsConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats concurrency %d: must be at least 1", c.StatsConcurrency))
	} else if c.StatsConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid stats concurrency %d: must be at most 64", c.StatsConcurrency))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
