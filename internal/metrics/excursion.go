package metrics

import (
	"math"

	"github.com/san-kum/dendrite/internal/grid"
)

// PhaseExcursion records the largest distance any phase value has strayed
// outside [0,1] over the run. Excursions are expected transients; this only
// measures them.
type PhaseExcursion struct {
	name       string
	maxDist    float64
	violations int
}

func NewPhaseExcursion() *PhaseExcursion {
	return &PhaseExcursion{name: "phase_excursion"}
}

func (e *PhaseExcursion) Name() string { return e.name }

func (e *PhaseExcursion) Observe(step int, f *grid.Fields) {
	var worst float64
	for _, p := range f.Phase {
		switch {
		case p < grid.Liquid:
			worst = math.Max(worst, grid.Liquid-p)
		case p > grid.Solid:
			worst = math.Max(worst, p-grid.Solid)
		}
	}
	if worst > 0 {
		e.violations++
	}
	e.maxDist = math.Max(e.maxDist, worst)
}

func (e *PhaseExcursion) Value() float64 { return e.maxDist }

// Steps reports how many observed steps had any excursion.
func (e *PhaseExcursion) Steps() int { return e.violations }

func (e *PhaseExcursion) Reset() {
	e.maxDist = 0
	e.violations = 0
}
