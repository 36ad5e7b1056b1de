package linsolve

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dendrite/internal/sparse"
)

var (
	// ErrDimensionMismatch indicates a right-hand side whose length differs
	// from the operator order.
	ErrDimensionMismatch = errors.New("linsolve: dimension mismatch between operator and rhs")

	// ErrUnknownSolver indicates a backend name that is not registered.
	ErrUnknownSolver = errors.New("linsolve: unknown solver")

	// ErrInvalidOptions indicates tolerances or iteration limits out of range.
	ErrInvalidOptions = errors.New("linsolve: invalid options")

	// ErrTooLarge indicates an operator beyond what a dense backend accepts.
	ErrTooLarge = errors.New("linsolve: operator too large for dense backend")
)

// Solver solves A·x = b.
type Solver interface {
	Name() string
	Solve(a *sparse.CSR, b []float64) (Result, error)
}

// Result is the outcome of one solve. X is always populated, even when the
// backend did not converge.
type Result struct {
	X          []float64
	Converged  bool
	Iterations int
	Residual   float64
}

// Options bound the iterative backends. The defaults match PETSc's KSP
// defaults.
type Options struct {
	RTol    float64 `yaml:"rtol" json:"rtol"`
	ATol    float64 `yaml:"atol" json:"atol"`
	MaxIter int     `yaml:"max_iter" json:"max_iter"`
}

const (
	DefaultRTol    = 1e-5
	DefaultATol    = 1e-50
	DefaultMaxIter = 10000
)

func DefaultOptions() Options {
	return Options{RTol: DefaultRTol, ATol: DefaultATol, MaxIter: DefaultMaxIter}
}

func (o Options) Validate() error {
	if o.RTol < 0 || math.IsNaN(o.RTol) {
		return fmt.Errorf("%w: rtol must be non-negative, got %g", ErrInvalidOptions, o.RTol)
	}
	if o.ATol < 0 || math.IsNaN(o.ATol) {
		return fmt.Errorf("%w: atol must be non-negative, got %g", ErrInvalidOptions, o.ATol)
	}
	if o.MaxIter <= 0 {
		return fmt.Errorf("%w: max_iter must be positive, got %d", ErrInvalidOptions, o.MaxIter)
	}
	return nil
}

// threshold is the residual norm a solve must reach.
func (o Options) threshold(bnorm float64) float64 {
	return math.Max(o.RTol*bnorm, o.ATol)
}

var registry = map[string]func(Options, *VectorPool) Solver{
	"cg":       func(o Options, p *VectorPool) Solver { return NewCG(o, p) },
	"bicgstab": func(o Options, p *VectorPool) Solver { return NewBiCGSTAB(o, p) },
	"jacobi":   func(o Options, p *VectorPool) Solver { return NewJacobi(o, p) },
	"dense":    func(o Options, _ *VectorPool) Solver { return NewDense(o) },
	"auto":     func(o Options, p *VectorPool) Solver { return NewAuto(o, p) },
}

// DefaultSolver is the backend used when none is configured.
const DefaultSolver = "auto"

// New constructs the named backend. All iterative backends created through
// New share one workspace pool.
func New(name string, opts Options) (Solver, error) {
	if name == "" {
		name = DefaultSolver
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownSolver, name, Names())
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return ctor(opts, sharedPool), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkDims(a *sparse.CSR, b []float64) error {
	if a == nil {
		return fmt.Errorf("%w: nil operator", ErrDimensionMismatch)
	}
	if a.Order() != len(b) {
		return fmt.Errorf("%w: order %d, rhs length %d", ErrDimensionMismatch, a.Order(), len(b))
	}
	return nil
}

// invDiagonal fills dst with 1/A[i][i], using 1 where the diagonal is zero.
func invDiagonal(dst []float64, a *sparse.CSR) {
	a.Diagonal(dst)
	for i, d := range dst {
		if d == 0 {
			dst[i] = 1
			continue
		}
		dst[i] = 1 / d
	}
}

// residual computes r = b - A·x into r and returns its 2-norm.
func residual(r []float64, a *sparse.CSR, x, b []float64) float64 {
	a.MulVec(r, x)
	var sum float64
	for i := range r {
		r[i] = b[i] - r[i]
		sum += r[i] * r[i]
	}
	return math.Sqrt(sum)
}
