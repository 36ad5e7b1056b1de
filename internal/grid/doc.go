// Package grid describes the 2D structured lattice shared by every solver
// component and the two scalar fields that live on it.
//
// Cells are addressed row-major with i along X and j along Y:
//
//	idx := g.Index(i, j) // i*Ny + j
//
// This mapping is the only indexing contract in the module. Operators,
// boundary passes, snapshot writers and metrics all go through [Grid.Index]
// or [Grid.Coords] rather than recomputing offsets.
package grid
