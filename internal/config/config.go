package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration, loaded from environment
// variables with a .env file as optional source.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Market   MarketConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"./data/tradepost.db"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// MarketConfig holds marketplace settings.
type MarketConfig struct {
	// FeePercent is the platform cut retained on direct listing
	// purchases. Matched settlements carry no fee.
	FeePercent int64 `envconfig:"MARKET_FEE_PERCENT" default:"25"`
}

// Load reads configuration from the environment (after loading .env if
// present), applies defaults, and validates values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.Log.Level)
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("invalid CACHE_TYPE: %q, must be one of: memory, redis", cfg.Cache.Type)
	}

	if cfg.Market.FeePercent < 0 || cfg.Market.FeePercent > 100 {
		return nil, fmt.Errorf("invalid MARKET_FEE_PERCENT: %d, must be between 0 and 100", cfg.Market.FeePercent)
	}

	return &cfg, nil
}
