// Package operator assembles the 5-point implicit operators of the phase
// and heat equations on a grid.
//
// Both operators clip the stencil at the domain edge: a boundary row simply
// has fewer neighbour terms. The heat operator additionally replaces every
// i = 0 row with an identity row so the left-wall temperature is imposed by
// the solve itself.
package operator

import (
	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/sparse"
)

// neighbours are visited in this order for every row.
var neighbours = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// PhaseBeta is the phase stencil weight dt·ε²/dx².
func PhaseBeta(g grid.Grid, dt, epsilon float64) float64 {
	return dt * epsilon * epsilon / (g.Dx * g.Dx)
}

// HeatBeta is the heat stencil weight dt/dx².
func HeatBeta(g grid.Grid, dt float64) float64 {
	return dt / (g.Dx * g.Dx)
}

// Phase builds tau·I − dt·ε²·Δ with the stencil clipped at the edges.
func Phase(g grid.Grid, tau, dt, epsilon float64) *sparse.CSR {
	beta := PhaseBeta(g, dt, epsilon)
	t := sparse.NewTriplets(g.Size(), 5*g.Size())
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Ny; j++ {
			addStencilRow(t, g, i, j, tau, beta)
		}
	}
	return t.ToCSR()
}

// Heat builds I − dt·Δ with identity rows on the left wall.
func Heat(g grid.Grid, dt float64) *sparse.CSR {
	beta := HeatBeta(g, dt)
	t := sparse.NewTriplets(g.Size(), 5*g.Size())
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Ny; j++ {
			if i == 0 {
				t.Add(g.Index(i, j), g.Index(i, j), 1.0)
				continue
			}
			addStencilRow(t, g, i, j, 1.0, beta)
		}
	}
	return t.ToCSR()
}

func addStencilRow(t *sparse.Triplets, g grid.Grid, i, j int, diag, beta float64) {
	row := g.Index(i, j)
	for _, d := range neighbours {
		ni, nj := i+d[0], j+d[1]
		if !g.InBounds(ni, nj) {
			continue
		}
		t.Add(row, g.Index(ni, nj), -beta)
		diag += beta
	}
	t.Add(row, row, diag)
}
