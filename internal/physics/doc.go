// Package physics holds the pointwise parts of the solidification model:
// the parameter set, the temperature-dependent driving force, the seeded
// noise stream and the boundary conditions applied before each step.
//
//   - [DrivingForce]: m(T) = (alpha/pi)·atan(gamma·(1-T))
//   - [NoiseSource]: reproducible uniform noise in [-a/2, a/2)
//   - [EnforceBoundaries]: zero-flux phase, cooled wall at x=0 and
//     zero-flux elsewhere for temperature
package physics
