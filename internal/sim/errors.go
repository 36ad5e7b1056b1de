package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates stepping parameters out of range.
	ErrInvalidConfig = errors.New("sim: invalid configuration")

	// ErrAlreadyRun indicates a second Run on the same stepper.
	ErrAlreadyRun = errors.New("sim: stepper has already run")

	// ErrNotConverged indicates a linear solve that hit its iteration cap
	// under the Abort policy.
	ErrNotConverged = errors.New("sim: linear solve did not converge")
)

// Stages of a step, used in StepError and log records.
const (
	StagePhase    = "phase"
	StageHeat     = "heat"
	StageSnapshot = "snapshot"
)

// StepError wraps a failure with the step and stage it happened in.
type StepError struct {
	Step    int
	Stage   string
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Stage, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
