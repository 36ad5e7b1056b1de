package linsolve

import (
	"sync"

	"github.com/san-kum/dendrite/internal/sparse"
)

// maxCached bounds the symmetry cache; it only fills up when operators are
// rebuilt every step.
const maxCached = 8

// Auto dispatches each solve to CG when the operator is symmetric and to
// BiCGSTAB otherwise. The symmetry check is cached per operator, so reused
// operators are inspected once.
type Auto struct {
	cg       *CG
	bicgstab *BiCGSTAB

	mu        sync.Mutex
	symmetric map[*sparse.CSR]bool
}

func NewAuto(opts Options, pool *VectorPool) *Auto {
	return &Auto{
		cg:        NewCG(opts, pool),
		bicgstab:  NewBiCGSTAB(opts, pool),
		symmetric: make(map[*sparse.CSR]bool),
	}
}

func (s *Auto) Name() string { return "auto" }

// Select returns the backend Auto would use for a.
func (s *Auto) Select(a *sparse.CSR) Solver {
	s.mu.Lock()
	sym, ok := s.symmetric[a]
	if !ok {
		if len(s.symmetric) >= maxCached {
			clear(s.symmetric)
		}
		sym = a.IsSymmetric(0)
		s.symmetric[a] = sym
	}
	s.mu.Unlock()

	if sym {
		return s.cg
	}
	return s.bicgstab
}

func (s *Auto) Solve(a *sparse.CSR, b []float64) (Result, error) {
	if err := checkDims(a, b); err != nil {
		return Result{}, err
	}
	return s.Select(a).Solve(a, b)
}
