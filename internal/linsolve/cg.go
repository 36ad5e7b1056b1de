package linsolve

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dendrite/internal/sparse"
)

// CG is Jacobi-preconditioned conjugate gradient. It assumes a symmetric
// positive definite operator; on other operators it may stall and report
// Converged = false.
type CG struct {
	opts Options
	pool *VectorPool
}

func NewCG(opts Options, pool *VectorPool) *CG {
	if pool == nil {
		pool = sharedPool
	}
	return &CG{opts: opts, pool: pool}
}

func (c *CG) Name() string { return "cg" }

func (c *CG) Solve(a *sparse.CSR, b []float64) (Result, error) {
	if err := checkDims(a, b); err != nil {
		return Result{}, err
	}
	n := len(b)
	x := make([]float64, n)

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return Result{X: x, Converged: true}, nil
	}
	tol := c.opts.threshold(bnorm)

	ws := c.pool.Acquire(n, 5)
	defer ws.Release()
	r, z, p, q, minv := ws.Vec(0), ws.Vec(1), ws.Vec(2), ws.Vec(3), ws.Vec(4)

	invDiagonal(minv, a)
	copy(r, b)
	floats.MulTo(z, minv, r)
	copy(p, z)
	rz := floats.Dot(r, z)

	res := Result{X: x, Residual: bnorm}
	for k := 1; k <= c.opts.MaxIter; k++ {
		a.MulVec(q, p)
		pq := floats.Dot(p, q)
		if pq == 0 {
			break
		}
		alpha := rz / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)

		res.Iterations = k
		res.Residual = floats.Norm(r, 2)
		if res.Residual <= tol {
			res.Converged = true
			break
		}

		floats.MulTo(z, minv, r)
		rzNext := floats.Dot(r, z)
		beta := rzNext / rz
		rz = rzNext
		floats.Scale(beta, p)
		floats.Add(p, z)
	}
	return res, nil
}
