package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/linsolve"
	"github.com/san-kum/dendrite/internal/operator"
	"github.com/san-kum/dendrite/internal/physics"
	"github.com/san-kum/dendrite/internal/sparse"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func smokeParams() physics.Params {
	return physics.Params{Epsilon: 1, Tau: 1, A: 0, Gamma: 10, Alpha: 0.9, K: 1.6}
}

func smokeGrid() grid.Grid {
	g, err := grid.New(10, 10, 10.0)
	Expect(err).NotTo(HaveOccurred())
	return g
}

func buildStepper(cfg Config, params physics.Params, solver linsolve.Solver, seed uint64, opts ...Option) *Stepper {
	return buildSeededStepper(cfg, params, solver, seed, grid.DefaultSeedFraction, opts...)
}

func buildSeededStepper(cfg Config, params physics.Params, solver linsolve.Solver, seed uint64,
	seedFraction float64, opts ...Option) *Stepper {
	g := smokeGrid()
	fields := grid.Initialize(g, seedFraction, 0)
	ops := operator.NewBuilder(g, params.Tau, cfg.Dt, params.Epsilon, true)
	noise := physics.NewNoiseSource(params.A, seed)
	s, err := New(cfg, params, fields, ops, solver, noise, append([]Option{WithLogger(quietLog)}, opts...)...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

// passThrough returns the rhs as the solution, reporting the given verdict.
func passThrough(converged bool) func(*sparse.CSR, []float64) (linsolve.Result, error) {
	return func(_ *sparse.CSR, b []float64) (linsolve.Result, error) {
		x := make([]float64, len(b))
		copy(x, b)
		return linsolve.Result{X: x, Converged: converged, Iterations: 7, Residual: 0.5}, nil
	}
}

type countingMetric struct {
	observed int
	resets   int
}

func (m *countingMetric) Name() string                   { return "count" }
func (m *countingMetric) Observe(step int, f *grid.Fields) { m.observed++ }
func (m *countingMetric) Value() float64                 { return float64(m.observed) }
func (m *countingMetric) Reset()                         { m.observed = 0; m.resets++ }

type recordingObserver struct {
	steps []int
}

func (o *recordingObserver) OnStep(r StepReport, f *grid.Fields) { o.steps = append(o.steps, r.Step) }

var _ = Describe("Stepper", func() {
	var (
		mockCtrl *gomock.Controller
		solver   *MockSolver
		sink     *MockSink
		cfg      Config
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		solver = NewMockSolver(mockCtrl)
		sink = NewMockSink(mockCtrl)
		solver.EXPECT().Name().Return("mock").AnyTimes()
		cfg = Config{Steps: 4, OutputInterval: 2, Dt: 0.01}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("construction", func() {
		It("should reject an invalid config", func() {
			g := smokeGrid()
			_, err := New(Config{Dt: 0, OutputInterval: 1}, smokeParams(), grid.Initialize(g, 0.05, 0),
				operator.NewBuilder(g, 1, 0.01, 1, true), solver, nil)
			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
		})

		It("should reject operators built for another grid", func() {
			g := smokeGrid()
			other, err := grid.New(12, 10, 12.0)
			Expect(err).NotTo(HaveOccurred())
			_, err = New(cfg, smokeParams(), grid.Initialize(g, 0.05, 0),
				operator.NewBuilder(other, 1, 0.01, 1, true), solver, nil)
			Expect(errors.Is(err, grid.ErrShapeMismatch)).To(BeTrue())
		})

		It("should reject fields of the wrong length", func() {
			g := smokeGrid()
			f := grid.Initialize(g, 0.05, 0)
			f.Temp = f.Temp[:len(f.Temp)-1]
			_, err := New(cfg, smokeParams(), f, operator.NewBuilder(g, 1, 0.01, 1, true), solver, nil)
			Expect(errors.Is(err, grid.ErrShapeMismatch)).To(BeTrue())
		})

		It("should default the divergence policy to continue", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1)
			Expect(s.Config().OnDiverge).To(Equal(Continue))
		})
	})

	Context("per-step order", func() {
		It("should solve the phase system before the heat system", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1)
			phaseOp, heatOp := s.ops.Phase(), s.ops.Heat()

			gomock.InOrder(
				solver.EXPECT().Solve(phaseOp, gomock.Any()).DoAndReturn(passThrough(true)),
				solver.EXPECT().Solve(heatOp, gomock.Any()).DoAndReturn(passThrough(true)),
			)

			report, err := s.Step(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Step).To(Equal(1))
			Expect(report.Time).To(BeNumerically("~", 0.01, 1e-15))
			Expect(report.Snapshot).To(BeFalse())
			Expect(report.Phase.Iterations).To(Equal(7))
		})

		It("should hand the phase rhs tau*p on a sharp initial front", func() {
			s := buildSeededStepper(cfg, smokeParams(), solver, 1, 0.3)
			want := make([]float64, 100)
			copy(want, s.Fields().Phase)

			solver.EXPECT().Solve(s.ops.Phase(), gomock.Any()).DoAndReturn(
				func(a *sparse.CSR, b []float64) (linsolve.Result, error) {
					Expect(b).To(Equal(want))
					return passThrough(true)(a, b)
				})
			solver.EXPECT().Solve(s.ops.Heat(), gomock.Any()).DoAndReturn(passThrough(true))

			_, err := s.Step(1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should couple the phase and heat rhs through a diffuse interface", func() {
			params := smokeParams()
			params.A = 0.05
			s := buildSeededStepper(cfg, params, solver, 7, 0.3)
			g := s.Fields().Grid()
			f := s.Fields()
			for i := 0; i < g.Nx; i++ {
				for j := 0; j < g.Ny; j++ {
					idx := g.Index(i, j)
					f.Phase[idx] = 0.5 * (1 - math.Tanh(float64(i)-4.5+0.1*float64(j)))
					f.Temp[idx] = -0.3 + 0.05*float64(i) - 0.02*float64(j)
				}
			}

			// Expected inputs are computed from the boundary-corrected state.
			pOld := append([]float64(nil), f.Phase...)
			tOld := append([]float64(nil), f.Temp...)
			physics.EnforceBoundaries(g, pOld, tOld, cfg.CoolingTemp)
			noise := physics.NewNoiseSource(params.A, 7).Sample(g.Size())

			wantPhase := make([]float64, g.Size())
			pNew := make([]float64, g.Size())
			wantHeat := make([]float64, g.Size())
			for idx, p := range pOld {
				m := (params.Alpha / math.Pi) * math.Atan(params.Gamma*(1-tOld[idx]))
				wantPhase[idx] = params.Tau*p + cfg.Dt*p*(1-p)*(p-0.5+m+noise[idx])

				pNew[idx] = 0.5 + 0.4*math.Sin(float64(idx))
				dpdt := 6 * pNew[idx] * (1 - pNew[idx]) * (pNew[idx] - p) / cfg.Dt
				wantHeat[idx] = tOld[idx] + cfg.Dt*params.K*dpdt
			}

			gomock.InOrder(
				solver.EXPECT().Solve(s.ops.Phase(), gomock.Any()).DoAndReturn(
					func(_ *sparse.CSR, b []float64) (linsolve.Result, error) {
						Expect(b).To(HaveLen(len(wantPhase)))
						for idx := range b {
							Expect(b[idx]).To(BeNumerically("~", wantPhase[idx], 1e-12), "phase rhs at %d", idx)
						}
						return linsolve.Result{X: append([]float64(nil), pNew...), Converged: true}, nil
					}),
				solver.EXPECT().Solve(s.ops.Heat(), gomock.Any()).DoAndReturn(
					func(a *sparse.CSR, b []float64) (linsolve.Result, error) {
						Expect(b).To(HaveLen(len(wantHeat)))
						for idx := range b {
							Expect(b[idx]).To(BeNumerically("~", wantHeat[idx], 1e-9), "heat rhs at %d", idx)
						}
						return passThrough(true)(a, b)
					}),
			)

			_, err := s.Step(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Phase).To(Equal(pNew))
			for idx := range f.Temp {
				Expect(f.Temp[idx]).To(BeNumerically("~", wantHeat[idx], 1e-9))
			}
		})

		It("should pin the heat rhs on the left wall when asked", func() {
			cfg.PinDirichletRHS = true
			cfg.CoolingTemp = -0.25
			s := buildStepper(cfg, smokeParams(), solver, 1)
			g := s.Fields().Grid()

			solver.EXPECT().Solve(s.ops.Phase(), gomock.Any()).DoAndReturn(passThrough(true))
			solver.EXPECT().Solve(s.ops.Heat(), gomock.Any()).DoAndReturn(
				func(a *sparse.CSR, b []float64) (linsolve.Result, error) {
					for j := 0; j < g.Ny; j++ {
						Expect(b[g.Index(0, j)]).To(Equal(-0.25))
					}
					return passThrough(true)(a, b)
				})

			_, err := s.Step(1)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("snapshots", func() {
		It("should write every output interval including step 0", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1, WithSink(sink))
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(true)).Times(10)

			var steps []int
			sink.EXPECT().WriteSnapshot(gomock.Any()).DoAndReturn(func(snap Snapshot) error {
				Expect(snap.Phase).To(HaveLen(100))
				Expect(snap.Temp).To(HaveLen(100))
				Expect(snap.Grid.Nx).To(Equal(10))
				Expect(snap.Time).To(BeNumerically("~", float64(snap.Step)*0.01, 1e-15))
				steps = append(steps, snap.Step)
				return nil
			}).Times(3)

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal([]int{0, 2, 4}))
			Expect(res.StepsTaken).To(Equal(5))
			Expect(res.Snapshots).To(Equal(3))
			Expect(res.HistorySteps).To(Equal([]int{0, 2, 4}))
		})

		It("should stop on a sink failure", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1, WithSink(sink))
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(true)).Times(2)
			sink.EXPECT().WriteSnapshot(gomock.Any()).Return(io.ErrShortWrite)

			res, err := s.Run(context.Background())
			var stepErr *StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Stage).To(Equal(StageSnapshot))
			Expect(errors.Is(err, io.ErrShortWrite)).To(BeTrue())
			Expect(res.StepsTaken).To(Equal(0))
		})
	})

	Context("non-convergence", func() {
		It("should warn and continue by default", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1)
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(false)).Times(10)

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(5))
			Expect(res.NonConverged).To(Equal(NonConverged{Phase: 5, Heat: 5}))
			Expect(res.NonConverged.Total()).To(Equal(10))
		})

		It("should abort under the abort policy", func() {
			cfg.OnDiverge = Abort
			s := buildStepper(cfg, smokeParams(), solver, 1)
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(false)).Times(1)

			res, err := s.Run(context.Background())
			Expect(errors.Is(err, ErrNotConverged)).To(BeTrue())
			var stepErr *StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(0))
			Expect(stepErr.Stage).To(Equal(StagePhase))
			Expect(res.StepsTaken).To(Equal(0))
		})
	})

	Context("solver failures", func() {
		It("should wrap backend errors with the stage", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1)
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(true))
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(linsolve.Result{}, linsolve.ErrTooLarge)

			_, err := s.Step(3)
			var stepErr *StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(3))
			Expect(stepErr.Stage).To(Equal(StageHeat))
			Expect(errors.Is(err, linsolve.ErrTooLarge)).To(BeTrue())
		})

		It("should fail fast on a short solution", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1)
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return(
				linsolve.Result{X: make([]float64, 99), Converged: true}, nil)

			_, err := s.Step(0)
			Expect(errors.Is(err, grid.ErrShapeMismatch)).To(BeTrue())
			Expect(s.Fields().Check()).To(Succeed())
		})
	})

	Context("run lifecycle", func() {
		It("should refuse to run twice", func() {
			cfg.Steps = 0
			s := buildStepper(cfg, smokeParams(), solver, 1)
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(true)).Times(2)

			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Run(context.Background())
			Expect(err).To(MatchError(ErrAlreadyRun))
		})

		It("should not start a step after cancellation", func() {
			s := buildStepper(cfg, smokeParams(), solver, 1)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := s.Run(ctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.StepsTaken).To(Equal(0))
		})

		It("should feed metrics and observers every step", func() {
			metric := &countingMetric{}
			obs := &recordingObserver{}
			s := buildStepper(cfg, smokeParams(), solver, 1, WithMetrics(metric), WithObserver(obs))
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).DoAndReturn(passThrough(true)).Times(10)

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(metric.resets).To(Equal(1))
			Expect(obs.steps).To(Equal([]int{0, 1, 2, 3, 4}))
			Expect(res.Metrics).To(HaveKeyWithValue("count", 5.0))
			Expect(res.History["count"]).To(Equal([]float64{1, 3, 5}))
		})
	})
})

var _ = Describe("Stepper with a real backend", func() {
	var cfg Config

	BeforeEach(func() {
		cfg = Config{Steps: 3, OutputInterval: 1, Dt: 0.01}
	})

	runWith := func(params physics.Params, seed uint64) *grid.Fields {
		solver, err := linsolve.New("dense", linsolve.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		s := buildSeededStepper(cfg, params, solver, seed, 0.3)
		_, err = s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		return s.Fields()
	}

	It("should build order-100 operators with at most five entries per row", func() {
		ops := operator.NewBuilder(smokeGrid(), 1.0, 0.01, 1.0, true)
		for _, a := range []*sparse.CSR{ops.Phase(), ops.Heat()} {
			Expect(a.Order()).To(Equal(100))
			Expect(a.MaxRowNNZ()).To(BeNumerically("<=", 5))
		}
	})

	It("should be deterministic without noise", func() {
		first := runWith(smokeParams(), 1)
		second := runWith(smokeParams(), 2)
		Expect(second.Phase).To(Equal(first.Phase))
		Expect(second.Temp).To(Equal(first.Temp))
	})

	It("should repeat a noisy run from the same seed", func() {
		params := smokeParams()
		params.A = 0.01
		first := runWith(params, 42)
		again := runWith(params, 42)
		other := runWith(params, 43)
		Expect(again.Phase).To(Equal(first.Phase))
		Expect(other.Phase).NotTo(Equal(first.Phase))
	})

	It("should keep both fields full length and the wall at the cooling temperature", func() {
		cfg.CoolingTemp = -0.1
		cfg.PinDirichletRHS = true
		f := runWith(smokeParams(), 1)
		Expect(f.Check()).To(Succeed())
		g := f.Grid()
		for j := 0; j < g.Ny; j++ {
			Expect(f.Temp[g.Index(0, j)]).To(BeNumerically("~", -0.1, 1e-12))
		}
	})
})
