package grid

import "fmt"

// MinCells is the smallest extent along either axis. The boundary pass
// copies from index 1 and Nx-2, which needs at least one interior cell.
const MinCells = 3

// Grid is the immutable geometry of the simulation domain.
type Grid struct {
	Nx, Ny int
	Dx     float64
}

// New derives a grid from the cell counts and the physical X extent.
func New(nx, ny int, lx float64) (Grid, error) {
	if nx < MinCells || ny < MinCells {
		return Grid{}, fmt.Errorf("%w: need Nx, Ny >= %d, got %dx%d", ErrInvalidGrid, MinCells, nx, ny)
	}
	if !(lx > 0) {
		return Grid{}, fmt.Errorf("%w: Lx must be positive, got %g", ErrInvalidGrid, lx)
	}
	return Grid{Nx: nx, Ny: ny, Dx: lx / float64(nx)}, nil
}

func (g Grid) Size() int { return g.Nx * g.Ny }

// Index maps (i, j) to the flat row-major offset.
func (g Grid) Index(i, j int) int { return i*g.Ny + j }

// Coords is the inverse of Index.
func (g Grid) Coords(idx int) (i, j int) { return idx / g.Ny, idx % g.Ny }

func (g Grid) InBounds(i, j int) bool {
	return i >= 0 && i < g.Nx && j >= 0 && j < g.Ny
}

// X returns the physical X coordinate of column i.
func (g Grid) X(i int) float64 { return float64(i) * g.Dx }

// Y returns the physical Y coordinate of row j. The lattice is square, so
// the Y spacing equals Dx.
func (g Grid) Y(j int) float64 { return float64(j) * g.Dx }

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d (dx=%g)", g.Nx, g.Ny, g.Dx)
}
