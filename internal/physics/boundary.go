package physics

import "github.com/san-kum/dendrite/internal/grid"

// EnforceBoundaries rewrites the edge cells of both fields in place.
//
// Phase is zero-gradient on all four edges. Temperature is held at coolT on
// the left wall (i = 0) and zero-gradient on the other three. Left/right
// columns are written first, then bottom/top rows, so corners take the value
// of their Y neighbour.
//
// Both slices must have g.Size() entries.
func EnforceBoundaries(g grid.Grid, p, t []float64, coolT float64) {
	nx, ny := g.Nx, g.Ny

	for j := 0; j < ny; j++ {
		p[g.Index(0, j)] = p[g.Index(1, j)]
		p[g.Index(nx-1, j)] = p[g.Index(nx-2, j)]
	}
	for i := 0; i < nx; i++ {
		p[g.Index(i, 0)] = p[g.Index(i, 1)]
		p[g.Index(i, ny-1)] = p[g.Index(i, ny-2)]
	}

	for j := 0; j < ny; j++ {
		t[g.Index(0, j)] = coolT
		t[g.Index(nx-1, j)] = t[g.Index(nx-2, j)]
	}
	for i := 0; i < nx; i++ {
		t[g.Index(i, 0)] = t[g.Index(i, 1)]
		t[g.Index(i, ny-1)] = t[g.Index(i, ny-2)]
	}
}

// EnforceFieldBoundaries applies EnforceBoundaries to f.
func EnforceFieldBoundaries(f *grid.Fields, coolT float64) {
	EnforceBoundaries(f.Grid(), f.Phase, f.Temp, coolT)
}
