package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dendrite/internal/grid"
)

// SolidFraction is the mean phase value over the grid at the latest
// observed step.
type SolidFraction struct {
	name  string
	value float64
}

func NewSolidFraction() *SolidFraction {
	return &SolidFraction{name: "solid_fraction"}
}

func (s *SolidFraction) Name() string { return s.name }

func (s *SolidFraction) Observe(step int, f *grid.Fields) {
	if len(f.Phase) == 0 {
		return
	}
	s.value = floats.Sum(f.Phase) / float64(len(f.Phase))
}

func (s *SolidFraction) Value() float64 { return s.value }

func (s *SolidFraction) Reset() { s.value = 0 }

// MeanTemperature is the mean temperature over the grid at the latest
// observed step.
type MeanTemperature struct {
	name  string
	value float64
}

func NewMeanTemperature() *MeanTemperature {
	return &MeanTemperature{name: "mean_temperature"}
}

func (m *MeanTemperature) Name() string { return m.name }

func (m *MeanTemperature) Observe(step int, f *grid.Fields) {
	if len(f.Temp) == 0 {
		return
	}
	m.value = floats.Sum(f.Temp) / float64(len(f.Temp))
}

func (m *MeanTemperature) Value() float64 { return m.value }

func (m *MeanTemperature) Reset() { m.value = 0 }
