package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/san-kum/dendrite/internal/config"
	"github.com/san-kum/dendrite/internal/storage"
	"github.com/san-kum/dendrite/internal/viz"
)

const (
	exitFailure     = 1
	exitSolverSetup = 2

	dotenvFile = ".env"
)

var (
	dataDir        string
	configFile     string
	preset         string
	seed           uint64
	solverName     string
	steps          int
	outputInterval int
	images         bool
	live           bool
	frameRate      int
	logLevel       string
	quiet          bool
	asJSON         bool
)

// exitError carries a process exit status up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	rootCmd := &cobra.Command{
		Use:           "dendrite",
		Short:         "phase-field solidification with latent heat",
		Args:          cobra.NoArgs,
		RunE:          runSimulation,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")

	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file path (yaml)")
	flags.StringVar(&preset, "preset", "", "start from a preset configuration")
	flags.Uint64Var(&seed, "seed", 0, "noise seed (0 picks one from the clock)")
	flags.StringVar(&solverName, "solver", "", "linear solver backend")
	flags.IntVar(&steps, "steps", 0, "number of time steps")
	flags.IntVar(&outputInterval, "output-interval", 0, "steps between snapshots")
	flags.BoolVar(&images, "images", false, "render a PNG per snapshot")
	flags.BoolVar(&live, "live", false, "show a live terminal view")
	flags.IntVar(&frameRate, "fps", 30, "live view frame rate")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&quiet, "quiet", false, "only print errors and the run id")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run summary and metric history",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print metadata as JSON")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(listCmd, showCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusFail.Render("error: ")+err.Error())
		code := exitFailure
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		atexit.Exit(code)
	}
	atexit.Exit(0)
}

// dataRoot is --data when given, else DENDRITE_DATA_DIR, else the default.
func dataRoot(cmd *cobra.Command) string {
	if cmd.Flags().Changed("data") {
		return dataDir
	}
	if e, err := config.LoadEnv(dotenvFile); err == nil && e.DataDir != "" {
		return e.DataDir
	}
	return dataDir
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataRoot(cmd))
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTIME\tGRID\tSTEPS\tSOLVER\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d/%d\t%s\t%.2fs\n",
			run.ID,
			run.Status,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Nx, run.Ny,
			run.StepsTaken, run.Steps+1,
			run.Solver,
			run.ElapsedSeconds,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataRoot(cmd))
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	if asJSON {
		return storage.ExportJSON(os.Stdout, meta)
	}

	fmt.Println(viz.Summary(meta))

	steps, history, err := st.LoadHistory(runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	names := make([]string, 0, len(history))
	for name := range history {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Println(viz.Subtle.Render(fmt.Sprintf("%d snapshots", len(steps))))
	for _, name := range names {
		fmt.Println()
		fmt.Println(viz.History(name, history[name], 60, 8))
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGRID\tL\tDT\tSTEPS\tINTERVAL")
	for _, name := range config.ListPresets() {
		c := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%dx%d\t%g\t%g\t%d\t%d\n",
			name, c.Nx, c.Ny, c.Lx, c.Dt, c.Steps, c.OutputInterval)
	}
	return w.Flush()
}
