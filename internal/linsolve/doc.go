// Package linsolve provides the sparse linear-solve backends used by the
// time stepper.
//
// Every backend satisfies [Solver]:
//
//	s, err := linsolve.New("bicgstab", linsolve.DefaultOptions())
//	res, err := s.Solve(A, b)
//	if !res.Converged {
//	    // best-effort: res.X is still the last iterate
//	}
//
// Available backends:
//
//   - cg: Jacobi-preconditioned conjugate gradient (symmetric operators)
//   - bicgstab: Jacobi-preconditioned BiCGSTAB (general operators)
//   - jacobi: damped Jacobi iteration (diagonally dominant operators)
//   - dense: LU factorization through gonum (small grids only)
//   - auto: cg for symmetric operators, bicgstab otherwise
//
// Non-convergence is reported through [Result.Converged], never as an error.
// Errors are reserved for malformed input and backend failures.
package linsolve
