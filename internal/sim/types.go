package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/dendrite/internal/grid"
)

// Snapshot is the field data handed to a Sink. Phase and Temp alias the
// live fields and are only valid for the duration of WriteSnapshot; a sink
// that keeps them must copy.
type Snapshot struct {
	Step  int
	Time  float64
	Grid  grid.Grid
	Phase []float64
	Temp  []float64
}

// Sink persists snapshots. It is called synchronously between steps.
type Sink interface {
	WriteSnapshot(s Snapshot) error
}

type Metric interface {
	Name() string
	Observe(step int, f *grid.Fields)
	Value() float64
	Reset()
}

// Observer is notified after every completed step.
type Observer interface {
	OnStep(r StepReport, f *grid.Fields)
}

// DivergePolicy decides what a non-converged linear solve does to the run.
type DivergePolicy string

const (
	// Continue logs a warning and keeps the returned solution.
	Continue DivergePolicy = "continue"
	// Abort stops the run with ErrNotConverged.
	Abort DivergePolicy = "abort"
)

type Config struct {
	Steps          int
	OutputInterval int
	Dt             float64
	CoolingTemp    float64
	// PinDirichletRHS sets the heat right-hand side on the left wall to
	// CoolingTemp before the solve.
	PinDirichletRHS bool
	OnDiverge       DivergePolicy
}

func (c Config) Validate() error {
	switch {
	case !(c.Dt > 0):
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	case c.Steps < 0:
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, c.Steps)
	case c.OutputInterval < 1:
		return fmt.Errorf("%w: output interval must be at least 1, got %d", ErrInvalidConfig, c.OutputInterval)
	}
	switch c.OnDiverge {
	case "", Continue, Abort:
	default:
		return fmt.Errorf("%w: unknown divergence policy %q", ErrInvalidConfig, c.OnDiverge)
	}
	return nil
}

// SolveStats summarises one linear solve.
type SolveStats struct {
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
	Converged  bool    `json:"converged"`
}

// StepReport describes one completed step.
type StepReport struct {
	Step     int
	Time     float64
	Phase    SolveStats
	Heat     SolveStats
	Snapshot bool
}

// NonConverged counts solves that hit their iteration cap, per equation.
type NonConverged struct {
	Phase int `json:"phase"`
	Heat  int `json:"heat"`
}

func (n NonConverged) Total() int { return n.Phase + n.Heat }

type Result struct {
	StepsTaken   int
	Snapshots    int
	Final        *grid.Fields
	Metrics      map[string]float64
	History      map[string][]float64
	HistorySteps []int
	NonConverged NonConverged
	Elapsed      time.Duration
}
