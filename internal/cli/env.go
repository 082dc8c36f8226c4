package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds UOW_* environment defaults.
type EnvConfig struct {
	// DB is the SQLite database path used when --db is not given.
	DB string `env:"UOW_DB"`
	// Driver selects the run target: sqlite or postgres.
	Driver string `env:"UOW_DRIVER" envDefault:"sqlite"`
	// PGDSN is the PostgreSQL connection string for the postgres driver.
	PGDSN   string `env:"UOW_PG_DSN"`
	Verbose bool   `env:"UOW_VERBOSE"`
}

// Drivers lists the supported run targets.
var Drivers = []string{"sqlite", "postgres"}

// LoadEnv parses the environment.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
