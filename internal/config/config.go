// Package config loads client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	APIURL          string        `env:"SAVOIR_API_URL" envDefault:"http://localhost:8080/api"`
	Store           string        `env:"SAVOIR_STORE" envDefault:"sqlite"`
	RedisAddr       string        `env:"SAVOIR_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"SAVOIR_REDIS_PASSWORD"`
	RedisDB         int           `env:"SAVOIR_REDIS_DB" envDefault:"0"`
	RedisNamespace  string        `env:"SAVOIR_REDIS_NAMESPACE" envDefault:"savoir"`
	SQLitePath      string        `env:"SAVOIR_SQLITE_PATH" envDefault:"savoir.db"`
	RequestTimeout  time.Duration `env:"SAVOIR_REQUEST_TIMEOUT" envDefault:"30s"`
	MutationTimeout time.Duration `env:"SAVOIR_MUTATION_TIMEOUT" envDefault:"10s"`
	PollInterval    time.Duration `env:"SAVOIR_POLL_INTERVAL" envDefault:"500ms"`
	LogLevel        string        `env:"SAVOIR_LOG_LEVEL" envDefault:"warn"`
	DevServerAddr   string        `env:"SAVOIR_DEVSERVER_ADDR" envDefault:":8080"`

	// BreakerThreshold is the number of consecutive server failures that
	// opens the API circuit breaker; 0 disables it.
	BreakerThreshold uint32        `env:"SAVOIR_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"SAVOIR_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store %q (want memory, redis or sqlite)", ErrInvalidConfig, c.Store)
	}
	if c.APIURL == "" {
		return fmt.Errorf("%w: SAVOIR_API_URL is empty", ErrInvalidConfig)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("%w: SAVOIR_SQLITE_PATH is empty", ErrInvalidConfig)
	}
	if c.BreakerThreshold > 0 && c.BreakerCooldown <= 0 {
		return fmt.Errorf("%w: SAVOIR_BREAKER_COOLDOWN must be positive, got %s", ErrInvalidConfig, c.BreakerCooldown)
	}
	for name, d := range map[string]time.Duration{
		"SAVOIR_REQUEST_TIMEOUT":  c.RequestTimeout,
		"SAVOIR_MUTATION_TIMEOUT": c.MutationTimeout,
		"SAVOIR_POLL_INTERVAL":    c.PollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, d)
		}
	}
	return nil
}
