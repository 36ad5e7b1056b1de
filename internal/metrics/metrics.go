// Package metrics provides scalar observables of the phase and temperature
// fields, sampled by the stepper after every step.
package metrics

import "github.com/san-kum/dendrite/internal/sim"

var (
	_ sim.Metric = (*SolidFraction)(nil)
	_ sim.Metric = (*MeanTemperature)(nil)
	_ sim.Metric = (*InterfacePosition)(nil)
	_ sim.Metric = (*PhaseExcursion)(nil)
)

// Default returns a fresh instance of every field metric.
func Default() []sim.Metric {
	return []sim.Metric{
		NewSolidFraction(),
		NewInterfacePosition(),
		NewMeanTemperature(),
		NewPhaseExcursion(),
	}
}
