package physics

import (
	"errors"
	"fmt"
)

// ErrParameterBounds indicates a physical constant outside its valid range.
var ErrParameterBounds = errors.New("physics: parameter out of valid bounds")

// Params are the constants of the discretized phase-field and heat
// equations. They are fixed for a run.
type Params struct {
	Epsilon float64 // gradient-energy coefficient
	Tau     float64 // relaxation time
	A       float64 // noise amplitude
	Gamma   float64 // driving-force sharpness
	Alpha   float64 // driving-force strength
	K       float64 // latent heat
}

func (p Params) Validate() error {
	switch {
	case !(p.Tau > 0):
		return fmt.Errorf("%w: tau must be positive, got %g", ErrParameterBounds, p.Tau)
	case p.Epsilon < 0:
		return fmt.Errorf("%w: epsilon must be non-negative, got %g", ErrParameterBounds, p.Epsilon)
	case p.A < 0:
		return fmt.Errorf("%w: noise amplitude must be non-negative, got %g", ErrParameterBounds, p.A)
	}
	return nil
}
