package linsolve

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dendrite/internal/sparse"
)

// MaxDenseOrder caps the dense backend; a 4096² matrix is already 128 MiB.
const MaxDenseOrder = 4096

// Dense factorizes the operator with gonum's LU. It is exact up to
// round-off and meant for small grids and for cross-checking the iterative
// backends. An ill-conditioned factorization still returns the solution but
// reports Converged = false.
type Dense struct {
	opts Options
}

func NewDense(opts Options) *Dense { return &Dense{opts: opts} }

func (d *Dense) Name() string { return "dense" }

func (d *Dense) Solve(a *sparse.CSR, b []float64) (Result, error) {
	if err := checkDims(a, b); err != nil {
		return Result{}, err
	}
	n := len(b)
	if n > MaxDenseOrder {
		return Result{}, fmt.Errorf("%w: order %d > %d", ErrTooLarge, n, MaxDenseOrder)
	}

	var lu mat.LU
	lu.Factorize(mat.DenseCopyOf(a))

	rhs := make([]float64, n)
	copy(rhs, b)
	x := mat.NewVecDense(n, nil)

	converged := true
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(n, rhs)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return Result{}, fmt.Errorf("linsolve: dense factorization: %w", err)
		}
		converged = false
	}

	sol := make([]float64, n)
	copy(sol, x.RawVector().Data)
	r := make([]float64, n)
	return Result{
		X:          sol,
		Converged:  converged,
		Iterations: 1,
		Residual:   residual(r, a, sol, b),
	}, nil
}
