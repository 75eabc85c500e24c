// Package config loads the application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Server holds HTTP listener settings.
type Server struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"3000"`
}

// Jwt holds token verification settings. The subject claim of a verified
// token is the sender identity of every transfer.
type Jwt struct {
	Secret string `envconfig:"SECRET" required:"true"`
}

// Ledger selects and configures the ledger store backend.
type Ledger struct {
	// Backend is one of "memory", "dynamodb", "postgres".
	Backend string `envconfig:"BACKEND" default:"memory"`
	// Table is the DynamoDB table name.
	Table string `envconfig:"TABLE" default:"P2PWalletCore"`
	// DatabaseUrl is the PostgreSQL DSN.
	DatabaseUrl string `envconfig:"DATABASE_URL"`
}

// Cache selects and configures the idempotency result cache.
type Cache struct {
	// Backend is one of "none", "memory", "redis".
	Backend       string `envconfig:"BACKEND" default:"none"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	Prefix        string `envconfig:"PREFIX" default:"idem:"`
}

// Idempotency bounds the replay-protection horizon.
type Idempotency struct {
	TTL time.Duration `envconfig:"TTL" default:"24h"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Env         string      `envconfig:"ENV" default:"development"`
	Server      Server      `envconfig:"SERVER"`
	Jwt         Jwt         `envconfig:"JWT"`
	Ledger      Ledger      `envconfig:"LEDGER"`
	Cache       Cache       `envconfig:"CACHE"`
	Idempotency Idempotency `envconfig:"IDEMPOTENCY"`
}

// Load reads the configuration from the environment. A missing .env file is
// not an error.
func Load(logger *slog.Logger) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using system environment variables")
	} else {
		logger.Info("Environment variables loaded from .env file")
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	logger.Info("App config loaded",
		"env", cfg.Env,
		"ledger_backend", cfg.Ledger.Backend,
		"cache_backend", cfg.Cache.Backend,
		"idempotency_ttl", cfg.Idempotency.TTL,
	)
	return &cfg, nil
}
