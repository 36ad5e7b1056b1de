package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env carries overrides read from the process environment.
type Env struct {
	DataDir  string `env:"DENDRITE_DATA_DIR"`
	Seed     uint64 `env:"DENDRITE_SEED"`
	Solver   string `env:"DENDRITE_SOLVER"`
	LogLevel string `env:"DENDRITE_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv loads dotenv files that exist, without overriding variables that
// are already set, then parses Env.
func LoadEnv(dotenvFiles ...string) (Env, error) {
	existing := make([]string, 0, len(dotenvFiles))
	for _, path := range dotenvFiles {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Env{}, err
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Env{}, fmt.Errorf("load dotenv: %w", err)
		}
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply overlays the non-empty overrides onto c.
func (e Env) Apply(c *Config) {
	if e.DataDir != "" {
		c.Output.Dir = e.DataDir
	}
	if e.Seed != 0 {
		c.Seed = e.Seed
	}
	if e.Solver != "" {
		c.Solver.Type = e.Solver
	}
}
