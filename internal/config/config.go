package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is read from TRADEFLOW_* environment variables, optionally seeded
// from a .env file in the working directory.
type Config struct {
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	Seed         int64         `envconfig:"SEED" default:"0"`
	GRPCAddr     string        `envconfig:"GRPC_ADDR" default:":9090"`
	HTTPAddr     string        `envconfig:"HTTP_ADDR" default:":8080"`
	StoreDriver  string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	StoreDSN     string        `envconfig:"STORE_DSN" default:"tradeflow.db"`
	CatalogFile  string        `envconfig:"CATALOG_FILE"`
	UserEmail    string        `envconfig:"USER_EMAIL" default:"demo@tradeflow.local"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"INFO"`
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("tradeflow", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be greater than 0")
	}

	switch c.StoreDriver {
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("store DSN cannot be empty for %s", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.StoreDriver)
	}

	if c.GRPCAddr == "" && c.HTTPAddr == "" {
		return fmt.Errorf("at least one of the gRPC or HTTP addresses must be set")
	}

	if c.UserEmail == "" {
		return fmt.Errorf("user email cannot be empty")
	}

	return nil
}

// SeedOrNow returns the configured seed, or a time based one when unset.
func (c *Config) SeedOrNow() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}
