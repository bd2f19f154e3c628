// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the full configuration for the quibble service and solver
// defaults, populated from environment variables.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`

	HTTP struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}

	Solver struct {
		Workers       int     `env:"SOLVER_WORKER_COUNT" envDefault:"4"`
		Trials        int     `env:"SOLVER_DEFAULT_TRIALS" envDefault:"1"`
		MaxIterations int     `env:"SOLVER_MAX_ITERATIONS" envDefault:"200"`
		Penalty       float64 `env:"SOLVER_PENALTY" envDefault:"1e6"`
		Epsilon       float64 `env:"SOLVER_EPSILON" envDefault:"1e-6"`
		Seed          int64   `env:"SOLVER_SEED" envDefault:"0"`
	}
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
