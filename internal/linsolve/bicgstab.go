package linsolve

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dendrite/internal/sparse"
)

// BiCGSTAB is right-preconditioned (Jacobi) stabilized biconjugate
// gradient. It handles the non-symmetric heat operator, whose identity
// wall rows break symmetry.
type BiCGSTAB struct {
	opts Options
	pool *VectorPool
}

func NewBiCGSTAB(opts Options, pool *VectorPool) *BiCGSTAB {
	if pool == nil {
		pool = sharedPool
	}
	return &BiCGSTAB{opts: opts, pool: pool}
}

func (s *BiCGSTAB) Name() string { return "bicgstab" }

func (s *BiCGSTAB) Solve(a *sparse.CSR, b []float64) (Result, error) {
	if err := checkDims(a, b); err != nil {
		return Result{}, err
	}
	n := len(b)
	x := make([]float64, n)

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return Result{X: x, Converged: true}, nil
	}
	tol := s.opts.threshold(bnorm)

	ws := s.pool.Acquire(n, 8)
	defer ws.Release()
	r, rhat, p, v := ws.Vec(0), ws.Vec(1), ws.Vec(2), ws.Vec(3)
	phat, shat, t, minv := ws.Vec(4), ws.Vec(5), ws.Vec(6), ws.Vec(7)

	invDiagonal(minv, a)
	copy(r, b)
	copy(rhat, b)

	rho, alpha, omega := 1.0, 1.0, 1.0
	res := Result{X: x, Residual: bnorm}

	for k := 1; k <= s.opts.MaxIter; k++ {
		rhoNext := floats.Dot(rhat, r)
		if rhoNext == 0 {
			break
		}
		if k == 1 {
			copy(p, r)
		} else {
			beta := (rhoNext / rho) * (alpha / omega)
			floats.AddScaled(p, -omega, v)
			floats.Scale(beta, p)
			floats.Add(p, r)
		}
		rho = rhoNext

		floats.MulTo(phat, minv, p)
		a.MulVec(v, phat)
		rv := floats.Dot(rhat, v)
		if rv == 0 {
			break
		}
		alpha = rho / rv

		// r now holds s = r - alpha·v.
		floats.AddScaled(r, -alpha, v)
		res.Iterations = k
		if sn := floats.Norm(r, 2); sn <= tol {
			floats.AddScaled(x, alpha, phat)
			res.Residual = sn
			res.Converged = true
			break
		}

		floats.MulTo(shat, minv, r)
		a.MulVec(t, shat)
		tt := floats.Dot(t, t)
		if tt == 0 {
			floats.AddScaled(x, alpha, phat)
			break
		}
		omega = floats.Dot(t, r) / tt

		floats.AddScaled(x, alpha, phat)
		floats.AddScaled(x, omega, shat)
		floats.AddScaled(r, -omega, t)

		res.Residual = floats.Norm(r, 2)
		if res.Residual <= tol {
			res.Converged = true
			break
		}
		if omega == 0 {
			break
		}
	}
	return res, nil
}
