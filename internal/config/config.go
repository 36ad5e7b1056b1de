package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/linsolve"
	"github.com/san-kum/dendrite/internal/physics"
	"github.com/san-kum/dendrite/internal/sim"
)

// ErrInvalidConfig indicates a missing or out-of-range parameter.
var ErrInvalidConfig = errors.New("config: invalid configuration")

const (
	DefaultNx             = 300
	DefaultLength         = 9.0
	DefaultDt             = 0.0002
	DefaultSteps          = 2000
	DefaultEpsilon        = 0.01
	DefaultTau            = 0.0003
	DefaultNoise          = 0.01
	DefaultGamma          = 10.0
	DefaultAlpha          = 0.9
	DefaultLatentHeat     = 1.6
	DefaultOutputInterval = 100
	DefaultDataDir        = ".dendrite"
)

// Config is the run description. The physics keys keep the names used by
// existing parameter files.
type Config struct {
	Nx             int     `yaml:"Nx"`
	Ny             int     `yaml:"Ny"`
	Lx             float64 `yaml:"Lx"`
	Ly             float64 `yaml:"Ly"`
	Dt             float64 `yaml:"dt"`
	Steps          int     `yaml:"steps"`
	Epsilon        float64 `yaml:"epsilon"`
	Tau            float64 `yaml:"tau"`
	A              float64 `yaml:"a"`
	Gamma          float64 `yaml:"gamma"`
	Alpha          float64 `yaml:"alpha"`
	K              float64 `yaml:"K"`
	OutputInterval int     `yaml:"output_interval"`

	// Seed drives the noise stream. Zero asks the caller to pick one and
	// record it.
	Seed               uint64  `yaml:"seed"`
	CoolingTemperature float64 `yaml:"cooling_temperature"`
	InitialTemperature float64 `yaml:"initial_temperature"`
	SeedFraction       float64 `yaml:"seed_fraction"`
	ReuseOperators     bool    `yaml:"reuse_operators"`
	PinDirichletRHS    bool    `yaml:"pin_dirichlet_rhs"`

	Solver SolverConfig `yaml:"solver"`
	Output OutputConfig `yaml:"output"`
}

type SolverConfig struct {
	Type      string  `yaml:"type"`
	RTol      float64 `yaml:"rtol"`
	ATol      float64 `yaml:"atol"`
	MaxIter   int     `yaml:"max_iter"`
	OnDiverge string  `yaml:"on_diverge"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Images    bool   `yaml:"images"`
	Snapshots bool   `yaml:"snapshots"`
}

func DefaultConfig() *Config {
	return &Config{
		Nx:             DefaultNx,
		Ny:             DefaultNx,
		Lx:             DefaultLength,
		Ly:             DefaultLength,
		Dt:             DefaultDt,
		Steps:          DefaultSteps,
		Epsilon:        DefaultEpsilon,
		Tau:            DefaultTau,
		A:              DefaultNoise,
		Gamma:          DefaultGamma,
		Alpha:          DefaultAlpha,
		K:              DefaultLatentHeat,
		OutputInterval: DefaultOutputInterval,
		SeedFraction:   grid.DefaultSeedFraction,
		ReuseOperators: true,
		Solver: SolverConfig{
			Type:      linsolve.DefaultSolver,
			RTol:      linsolve.DefaultRTol,
			ATol:      linsolve.DefaultATol,
			MaxIter:   linsolve.DefaultMaxIter,
			OnDiverge: string(sim.Continue),
		},
		Output: OutputConfig{
			Dir:       DefaultDataDir,
			Snapshots: true,
		},
	}
}

// Load reads a YAML file over the defaults; keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over base, which is modified and returned.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return base, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"Lx", c.Lx}, {"Ly", c.Ly}, {"dt", c.Dt}, {"tau", c.Tau},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfig, p.name, p.v)
		}
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"epsilon", c.Epsilon}, {"a", c.A}, {"solver.rtol", c.Solver.RTol}, {"solver.atol", c.Solver.ATol},
	}
	for _, p := range nonNegative {
		if p.v < 0 || math.IsNaN(p.v) {
			return fmt.Errorf("%w: %s must be non-negative, got %g", ErrInvalidConfig, p.name, p.v)
		}
	}

	switch {
	case c.Nx < grid.MinCells || c.Ny < grid.MinCells:
		return fmt.Errorf("%w: grid must be at least %dx%d, got %dx%d",
			ErrInvalidConfig, grid.MinCells, grid.MinCells, c.Nx, c.Ny)
	case c.Steps < 0:
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, c.Steps)
	case c.OutputInterval < 1:
		return fmt.Errorf("%w: output_interval must be at least 1, got %d", ErrInvalidConfig, c.OutputInterval)
	case c.SeedFraction < 0 || c.SeedFraction > 1:
		return fmt.Errorf("%w: seed_fraction must be in [0,1], got %g", ErrInvalidConfig, c.SeedFraction)
	case c.Solver.MaxIter < 0:
		return fmt.Errorf("%w: solver.max_iter must be non-negative, got %d", ErrInvalidConfig, c.Solver.MaxIter)
	}

	switch sim.DivergePolicy(c.Solver.OnDiverge) {
	case "", sim.Continue, sim.Abort:
	default:
		return fmt.Errorf("%w: solver.on_diverge must be %q or %q, got %q",
			ErrInvalidConfig, sim.Continue, sim.Abort, c.Solver.OnDiverge)
	}
	return nil
}

// Derived holds the typed values each package consumes.
type Derived struct {
	Grid   grid.Grid
	Params physics.Params
	Sim    sim.Config
	Solver linsolve.Options
}

// Derived validates c and splits it into per-package settings. The Y
// spacing is taken equal to dx = Lx/Nx.
func (c *Config) Derived() (Derived, error) {
	if err := c.Validate(); err != nil {
		return Derived{}, err
	}
	g, err := grid.New(c.Nx, c.Ny, c.Lx)
	if err != nil {
		return Derived{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	opts := linsolve.Options{RTol: c.Solver.RTol, ATol: c.Solver.ATol, MaxIter: c.Solver.MaxIter}
	if opts.MaxIter == 0 {
		opts.MaxIter = linsolve.DefaultMaxIter
	}

	return Derived{
		Grid: g,
		Params: physics.Params{
			Epsilon: c.Epsilon,
			Tau:     c.Tau,
			A:       c.A,
			Gamma:   c.Gamma,
			Alpha:   c.Alpha,
			K:       c.K,
		},
		Sim: sim.Config{
			Steps:           c.Steps,
			OutputInterval:  c.OutputInterval,
			Dt:              c.Dt,
			CoolingTemp:     c.CoolingTemperature,
			PinDirichletRHS: c.PinDirichletRHS,
			OnDiverge:       sim.DivergePolicy(c.Solver.OnDiverge),
		},
		Solver: opts,
	}, nil
}

// ParamMap flattens the physical constants for run metadata.
func (c *Config) ParamMap() map[string]float64 {
	return map[string]float64{
		"Lx":                  c.Lx,
		"Ly":                  c.Ly,
		"epsilon":             c.Epsilon,
		"tau":                 c.Tau,
		"a":                   c.A,
		"gamma":               c.Gamma,
		"alpha":               c.Alpha,
		"K":                   c.K,
		"cooling_temperature": c.CoolingTemperature,
		"initial_temperature": c.InitialTemperature,
		"seed_fraction":       c.SeedFraction,
	}
}
