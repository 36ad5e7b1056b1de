package grid

import "errors"

var (
	// ErrInvalidGrid indicates non-positive dimensions or spacing, or a
	// lattice too small to have an interior.
	ErrInvalidGrid = errors.New("grid: invalid dimensions")

	// ErrShapeMismatch indicates a field whose length is not Nx*Ny.
	ErrShapeMismatch = errors.New("grid: field length does not match grid size")
)
