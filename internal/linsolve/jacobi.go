package linsolve

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dendrite/internal/sparse"
)

// DefaultJacobiWeight is the relaxation factor of the Jacobi sweep.
const DefaultJacobiWeight = 1.0

// Jacobi iterates x ← x + w·D⁻¹(b − A·x). Both stepper operators are
// diagonally dominant, so the sweep converges, though slowly on fine grids.
type Jacobi struct {
	opts   Options
	pool   *VectorPool
	weight float64
}

func NewJacobi(opts Options, pool *VectorPool) *Jacobi {
	if pool == nil {
		pool = sharedPool
	}
	return &Jacobi{opts: opts, pool: pool, weight: DefaultJacobiWeight}
}

func (j *Jacobi) Name() string { return "jacobi" }

func (j *Jacobi) Solve(a *sparse.CSR, b []float64) (Result, error) {
	if err := checkDims(a, b); err != nil {
		return Result{}, err
	}
	n := len(b)
	x := make([]float64, n)

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return Result{X: x, Converged: true}, nil
	}
	tol := j.opts.threshold(bnorm)

	ws := j.pool.Acquire(n, 3)
	defer ws.Release()
	r, minv, dx := ws.Vec(0), ws.Vec(1), ws.Vec(2)
	invDiagonal(minv, a)

	res := Result{X: x, Residual: bnorm}
	copy(r, b)
	for k := 1; k <= j.opts.MaxIter; k++ {
		floats.MulTo(dx, minv, r)
		floats.AddScaled(x, j.weight, dx)

		res.Iterations = k
		res.Residual = residual(r, a, x, b)
		if res.Residual <= tol {
			res.Converged = true
			break
		}
	}
	return res, nil
}
