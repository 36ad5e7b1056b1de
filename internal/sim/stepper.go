package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/linsolve"
	"github.com/san-kum/dendrite/internal/operator"
	"github.com/san-kum/dendrite/internal/physics"
	"github.com/san-kum/dendrite/internal/sparse"
)

// Stepper advances the phase and temperature fields together. It owns the
// fields for the whole run and is not safe for concurrent use.
type Stepper struct {
	cfg    Config
	params physics.Params
	fields *grid.Fields
	ops    *operator.Builder
	solver linsolve.Solver
	noise  *physics.NoiseSource

	log       *slog.Logger
	sink      Sink
	metrics   []Metric
	observers []Observer

	mT       []float64
	pOld     []float64
	noiseBuf []float64
	rhs      []float64
	dpdt     []float64

	nonConverged NonConverged
	ran          bool
}

type Option func(*Stepper)

func WithLogger(l *slog.Logger) Option {
	return func(s *Stepper) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSink sets where snapshots go. Without one, snapshot steps are only
// counted.
func WithSink(sink Sink) Option {
	return func(s *Stepper) { s.sink = sink }
}

func WithMetrics(ms ...Metric) Option {
	return func(s *Stepper) { s.metrics = append(s.metrics, ms...) }
}

func WithObserver(o Observer) Option {
	return func(s *Stepper) { s.observers = append(s.observers, o) }
}

// New wires a stepper. The builder must describe the same grid as fields;
// a nil noise source means a zero-amplitude one.
func New(cfg Config, params physics.Params, fields *grid.Fields, ops *operator.Builder,
	solver linsolve.Solver, noise *physics.NoiseSource, opts ...Option) (*Stepper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.OnDiverge == "" {
		cfg.OnDiverge = Continue
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if fields == nil || ops == nil || solver == nil {
		return nil, fmt.Errorf("%w: fields, operators and solver are required", ErrInvalidConfig)
	}
	if err := fields.Check(); err != nil {
		return nil, err
	}
	if ops.Grid() != fields.Grid() {
		return nil, fmt.Errorf("%w: operators built for %s, fields on %s",
			grid.ErrShapeMismatch, ops.Grid(), fields.Grid())
	}
	if noise == nil {
		noise = physics.NewNoiseSource(0, 0)
	}

	n := fields.Grid().Size()
	s := &Stepper{
		cfg:      cfg,
		params:   params,
		fields:   fields,
		ops:      ops,
		solver:   solver,
		noise:    noise,
		log:      slog.Default(),
		mT:       make([]float64, n),
		pOld:     make([]float64, n),
		noiseBuf: make([]float64, n),
		rhs:      make([]float64, n),
		dpdt:     make([]float64, n),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Stepper) Fields() *grid.Fields { return s.fields }

func (s *Stepper) Config() Config { return s.cfg }

func (s *Stepper) NonConverged() NonConverged { return s.nonConverged }

// Step performs one full update of both fields and, on snapshot steps,
// hands them to the sink.
func (s *Stepper) Step(step int) (StepReport, error) {
	g := s.fields.Grid()
	p, temp := s.fields.Phase, s.fields.Temp
	dt := s.cfg.Dt
	report := StepReport{Step: step, Time: float64(step) * dt}

	physics.EnforceBoundaries(g, p, temp, s.cfg.CoolingTemp)
	physics.DrivingField(s.mT, temp, s.params.Alpha, s.params.Gamma)
	copy(s.pOld, p)
	s.noise.Fill(s.noiseBuf)

	tau := s.params.Tau
	for idx, pv := range p {
		s.rhs[idx] = tau*pv + dt*pv*(1-pv)*(pv-0.5+s.mT[idx]+s.noiseBuf[idx])
	}
	stats, err := s.solve(step, StagePhase, s.ops.Phase(), p)
	report.Phase = stats
	if err != nil {
		return report, err
	}

	for idx, pv := range p {
		s.dpdt[idx] = 6 * pv * (1 - pv) * (pv - s.pOld[idx]) / dt
	}
	latent := dt * s.params.K
	for idx, tv := range temp {
		s.rhs[idx] = tv + latent*s.dpdt[idx]
	}
	if s.cfg.PinDirichletRHS {
		for j := 0; j < g.Ny; j++ {
			s.rhs[g.Index(0, j)] = s.cfg.CoolingTemp
		}
	}
	stats, err = s.solve(step, StageHeat, s.ops.Heat(), temp)
	report.Heat = stats
	if err != nil {
		return report, err
	}

	if step%s.cfg.OutputInterval == 0 {
		report.Snapshot = true
		if err := s.snapshot(report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// solve runs the backend on s.rhs and writes the solution into dst.
func (s *Stepper) solve(step int, stage string, a *sparse.CSR, dst []float64) (SolveStats, error) {
	res, err := s.solver.Solve(a, s.rhs)
	if err != nil {
		return SolveStats{}, &StepError{Step: step, Stage: stage, Wrapped: err}
	}
	stats := SolveStats{Iterations: res.Iterations, Residual: res.Residual, Converged: res.Converged}
	if len(res.X) != len(dst) {
		return stats, &StepError{Step: step, Stage: stage, Wrapped: fmt.Errorf(
			"%w: solver returned %d entries, want %d", grid.ErrShapeMismatch, len(res.X), len(dst))}
	}

	if !res.Converged {
		if stage == StagePhase {
			s.nonConverged.Phase++
		} else {
			s.nonConverged.Heat++
		}
		s.log.Warn("linear solve did not converge",
			"equation", stage,
			"step", step,
			"solver", s.solver.Name(),
			"iterations", res.Iterations,
			"residual", res.Residual)
		if s.cfg.OnDiverge == Abort {
			return stats, &StepError{Step: step, Stage: stage, Wrapped: ErrNotConverged}
		}
	}

	copy(dst, res.X)
	return stats, nil
}

func (s *Stepper) snapshot(r StepReport) error {
	g := s.fields.Grid()
	if s.sink != nil {
		snap := Snapshot{
			Step:  r.Step,
			Time:  r.Time,
			Grid:  g,
			Phase: s.fields.Phase,
			Temp:  s.fields.Temp,
		}
		if err := s.sink.WriteSnapshot(snap); err != nil {
			return &StepError{Step: r.Step, Stage: StageSnapshot, Wrapped: err}
		}
	}
	s.log.Info("snapshot written",
		"step", r.Step,
		"time", r.Time,
		"solid_fraction", floats.Sum(s.fields.Phase)/float64(g.Size()))
	return nil
}

// Run executes steps 0 through Steps inclusive. Cancellation is checked
// between steps; a step in progress always completes. On error the partial
// result is returned alongside it.
func (s *Stepper) Run(ctx context.Context) (*Result, error) {
	if s.ran {
		return nil, ErrAlreadyRun
	}
	s.ran = true

	for _, m := range s.metrics {
		m.Reset()
	}

	result := &Result{
		Final:        s.fields,
		Metrics:      make(map[string]float64),
		History:      make(map[string][]float64),
		HistorySteps: make([]int, 0, s.cfg.Steps/s.cfg.OutputInterval+1),
	}
	start := time.Now()
	defer func() {
		result.Elapsed = time.Since(start)
		result.NonConverged = s.nonConverged
		for _, m := range s.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}()

	s.log.Debug("run starting",
		"grid", s.fields.Grid().String(),
		"steps", s.cfg.Steps,
		"solver", s.solver.Name(),
		"seed", s.noise.Seed())

	for step := 0; step <= s.cfg.Steps; step++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		report, err := s.Step(step)
		if err != nil {
			return result, err
		}
		result.StepsTaken++

		for _, m := range s.metrics {
			m.Observe(step, s.fields)
		}
		if report.Snapshot {
			result.Snapshots++
			result.HistorySteps = append(result.HistorySteps, step)
			for _, m := range s.metrics {
				result.History[m.Name()] = append(result.History[m.Name()], m.Value())
			}
		}
		for _, obs := range s.observers {
			obs.OnStep(report, s.fields)
		}

		s.log.Debug("step complete",
			"step", step,
			"phase_iterations", report.Phase.Iterations,
			"heat_iterations", report.Heat.Iterations)
	}
	return result, nil
}
