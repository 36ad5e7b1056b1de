package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/san-kum/dendrite/internal/config"
	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/linsolve"
	"github.com/san-kum/dendrite/internal/metrics"
	"github.com/san-kum/dendrite/internal/operator"
	"github.com/san-kum/dendrite/internal/physics"
	"github.com/san-kum/dendrite/internal/sim"
	"github.com/san-kum/dendrite/internal/snapshot"
	"github.com/san-kum/dendrite/internal/storage"
	"github.com/san-kum/dendrite/internal/tui"
	"github.com/san-kum/dendrite/internal/viz"
)

// resolveConfig layers preset, config file, environment and explicit flags,
// in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, config.Env, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, config.Env{}, fmt.Errorf("%w: unknown preset %q (available: %v)",
				config.ErrInvalidConfig, preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.LoadOver(configFile, cfg); err != nil {
			return nil, config.Env{}, err
		}
	}

	e, err := config.LoadEnv(dotenvFile)
	if err != nil {
		return nil, config.Env{}, err
	}
	e.Apply(cfg)

	if cmd.Flags().Changed("data") {
		cfg.Output.Dir = dataDir
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("solver") {
		cfg.Solver.Type = solverName
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("output-interval") {
		cfg.OutputInterval = outputInterval
	}
	if cmd.Flags().Changed("images") {
		cfg.Output.Images = images
	}
	if cmd.Flags().Changed("log-level") {
		e.LogLevel = logLevel
	}
	return cfg, e, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, level)
	}
	if quiet || live {
		lvl = max(lvl, slog.LevelError)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, e, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(e.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	d, err := cfg.Derived()
	if err != nil {
		return err
	}
	solver, err := linsolve.New(cfg.Solver.Type, d.Solver)
	if err != nil {
		return &exitError{code: exitSolverSetup, err: fmt.Errorf("solver setup: %w", err)}
	}

	st := storage.New(cfg.Output.Dir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, runDir, err := st.Create()
	if err != nil {
		return err
	}
	logger = logger.With("run", runID)

	var sinks []sim.Sink
	if cfg.Output.Snapshots {
		ds, err := snapshot.OpenDataset(filepath.Join(runDir, snapshot.DatasetFile), logger)
		if err != nil {
			return err
		}
		atexit.Register(func() {
			if err := ds.Close(); err != nil {
				logger.Error("closing snapshot dataset", "err", err)
			}
		})
		sinks = append(sinks, ds)
	}
	if cfg.Output.Images {
		r, err := snapshot.NewRenderer(runDir)
		if err != nil {
			return err
		}
		sinks = append(sinks, r)
	}

	meta := &storage.RunMetadata{
		ID:             runID,
		Timestamp:      time.Now(),
		Status:         storage.StatusRunning,
		Preset:         preset,
		Seed:           cfg.Seed,
		Solver:         solver.Name(),
		Nx:             d.Grid.Nx,
		Ny:             d.Grid.Ny,
		Dx:             d.Grid.Dx,
		Dt:             cfg.Dt,
		Steps:          cfg.Steps,
		OutputInterval: cfg.OutputInterval,
		Params:         cfg.ParamMap(),
	}
	if err := st.SaveMetadata(meta); err != nil {
		return err
	}

	fields := grid.Initialize(d.Grid, cfg.SeedFraction, cfg.InitialTemperature)
	ops := operator.NewBuilder(d.Grid, d.Params.Tau, d.Sim.Dt, d.Params.Epsilon, cfg.ReuseOperators)
	noise := physics.NewNoiseSource(d.Params.A, cfg.Seed)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []sim.Option{
		sim.WithLogger(logger),
		sim.WithSink(snapshot.NewMulti(sinks...)),
		sim.WithMetrics(metrics.Default()...),
	}
	var program *tea.Program
	if live {
		program = tea.NewProgram(tui.NewModel(runID, cfg.Steps, cancel))
		opts = append(opts, sim.WithObserver(tui.NewObserver(program.Send, frameRate)))
	}

	stepper, err := sim.New(d.Sim, d.Params, fields, ops, solver, noise, opts...)
	if err != nil {
		return err
	}
	logger.Info("run started", "grid", d.Grid.String(), "steps", cfg.Steps, "solver", solver.Name(), "seed", cfg.Seed)

	var result *sim.Result
	var runErr error
	if program != nil {
		result, runErr = runWithView(ctx, cancel, program, stepper.Run)
	} else {
		result, runErr = stepper.Run(ctx)
	}

	if err := saveOutcome(st, meta, result, runErr); err != nil {
		return err
	}

	if quiet {
		fmt.Println(runID)
		return nil
	}
	fmt.Println(viz.Summary(meta))
	return nil
}

// errLiveView marks a run stopped because the terminal view failed rather
// than by the user.
var errLiveView = errors.New("live view failed")

// liveView is the part of *tea.Program the run needs.
type liveView interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
}

// runWithView steps in the background while view owns the terminal. If the
// view fails, the run is cancelled and its partial result is still returned.
func runWithView(ctx context.Context, cancel context.CancelFunc, view liveView,
	run func(context.Context) (*sim.Result, error)) (*sim.Result, error) {
	var (
		result *sim.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = run(ctx)
		view.Send(tui.DoneMsg{Err: runErr})
	}()

	if _, err := view.Run(); err != nil {
		cancel()
		<-done
		return result, errors.Join(runErr, fmt.Errorf("%w: %v", errLiveView, err))
	}
	<-done
	return result, runErr
}

// saveOutcome records the final status, metrics and history of a run. The
// run error, if any, is returned wrapped with the run id.
func saveOutcome(st *storage.Store, meta *storage.RunMetadata, result *sim.Result, runErr error) error {
	finishMetadata(meta, result, runErr)
	if err := st.SaveMetadata(meta); err != nil {
		return errors.Join(runErr, err)
	}
	if result != nil {
		if err := st.SaveHistory(meta.ID, result.HistorySteps, result.History); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", meta.ID, runErr)
	}
	return nil
}

func finishMetadata(meta *storage.RunMetadata, result *sim.Result, runErr error) {
	switch {
	case runErr == nil:
		meta.Status = storage.StatusCompleted
	case errors.Is(runErr, context.Canceled) && !errors.Is(runErr, errLiveView):
		meta.Status = storage.StatusCanceled
		meta.Error = runErr.Error()
	default:
		meta.Status = storage.StatusFailed
		meta.Error = runErr.Error()
	}
	if result == nil {
		return
	}
	meta.StepsTaken = result.StepsTaken
	meta.Snapshots = result.Snapshots
	meta.ElapsedSeconds = result.Elapsed.Seconds()
	meta.NonConverged = result.NonConverged
	meta.Metrics = result.Metrics
}
