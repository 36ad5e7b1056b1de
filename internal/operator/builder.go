package operator

import (
	"sync"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/sparse"
)

// Builder hands out the phase and heat operators for a run. With reuse
// enabled each operator is assembled on first request and shared after
// that, since none of its inputs change during a run. With reuse disabled
// every call assembles a fresh operator.
type Builder struct {
	grid    grid.Grid
	tau     float64
	dt      float64
	epsilon float64
	reuse   bool

	phaseOnce sync.Once
	heatOnce  sync.Once
	phase     *sparse.CSR
	heat      *sparse.CSR
	builds    int
}

func NewBuilder(g grid.Grid, tau, dt, epsilon float64, reuse bool) *Builder {
	return &Builder{grid: g, tau: tau, dt: dt, epsilon: epsilon, reuse: reuse}
}

func (b *Builder) Phase() *sparse.CSR {
	if !b.reuse {
		b.builds++
		return Phase(b.grid, b.tau, b.dt, b.epsilon)
	}
	b.phaseOnce.Do(func() {
		b.builds++
		b.phase = Phase(b.grid, b.tau, b.dt, b.epsilon)
	})
	return b.phase
}

func (b *Builder) Heat() *sparse.CSR {
	if !b.reuse {
		b.builds++
		return Heat(b.grid, b.dt)
	}
	b.heatOnce.Do(func() {
		b.builds++
		b.heat = Heat(b.grid, b.dt)
	})
	return b.heat
}

// Builds counts how many operators have been assembled so far.
func (b *Builder) Builds() int { return b.builds }

func (b *Builder) Reuse() bool { return b.reuse }

func (b *Builder) Grid() grid.Grid { return b.grid }
