package grid

import "fmt"

const (
	Solid  = 1.0
	Liquid = 0.0
)

// DefaultSeedFraction is the share of the X extent seeded as solid.
const DefaultSeedFraction = 0.05

// Fields holds the phase and temperature values over a grid. Phase is
// nominally in [0,1] but is never clamped; the solver tolerates transient
// excursions.
type Fields struct {
	Phase []float64
	Temp  []float64
	grid  Grid
}

// NewFields allocates zeroed fields for g.
func NewFields(g Grid) *Fields {
	return &Fields{
		Phase: make([]float64, g.Size()),
		Temp:  make([]float64, g.Size()),
		grid:  g,
	}
}

// Initialize builds the initial state: a solid strip over the first
// SeedWidth columns, liquid elsewhere, and a uniform temperature.
func Initialize(g Grid, seedFraction, temperature float64) *Fields {
	f := NewFields(g)
	width := SeedWidth(g.Nx, seedFraction)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Ny; j++ {
			idx := g.Index(i, j)
			if i < width {
				f.Phase[idx] = Solid
			} else {
				f.Phase[idx] = Liquid
			}
			f.Temp[idx] = temperature
		}
	}
	return f
}

// SeedWidth is floor(fraction*nx), the number of solid columns at start.
func SeedWidth(nx int, fraction float64) int {
	w := int(fraction * float64(nx))
	if w < 0 {
		return 0
	}
	if w > nx {
		return nx
	}
	return w
}

func (f *Fields) Grid() Grid { return f.grid }

// Check verifies both fields still cover the whole grid.
func (f *Fields) Check() error {
	n := f.grid.Size()
	if len(f.Phase) != n {
		return fmt.Errorf("%w: phase has %d entries, want %d", ErrShapeMismatch, len(f.Phase), n)
	}
	if len(f.Temp) != n {
		return fmt.Errorf("%w: temperature has %d entries, want %d", ErrShapeMismatch, len(f.Temp), n)
	}
	return nil
}

func (f *Fields) Clone() *Fields {
	c := &Fields{
		Phase: make([]float64, len(f.Phase)),
		Temp:  make([]float64, len(f.Temp)),
		grid:  f.grid,
	}
	copy(c.Phase, f.Phase)
	copy(c.Temp, f.Temp)
	return c
}

// Column returns a copy of phase values along column i (all j).
func (f *Fields) Column(i int) []float64 {
	col := make([]float64, f.grid.Ny)
	copy(col, f.Phase[f.grid.Index(i, 0):f.grid.Index(i, 0)+f.grid.Ny])
	return col
}
