package refine

import (
	"errors"
	"fmt"
)

var (
	// ErrRefinementFailed matches every *FailedError via errors.Is.
	ErrRefinementFailed = errors.New("refinement failed")

	// ErrInvalidMaxIteration is returned for a negative iteration cap.
	ErrInvalidMaxIteration = errors.New("max iteration must not be negative")

	// ErrInvalidState is returned by Continue for an inconsistent State.
	ErrInvalidState = errors.New("invalid refinement state")

	// ErrEmptyCandidate is the cause of a FailedError when the generator or
	// optimizer returns a blank candidate.
	ErrEmptyCandidate = errors.New("empty candidate")
)

// FailedError aborts a loop whose generator, evaluator or optimizer failed,
// or whose context ended. It carries the last good candidate.
type FailedError struct {
	Step      NextStep
	Candidate string
	Iteration int
	Cause     error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("refinement failed at %s (iteration %d): %v", e.Step, e.Iteration, e.Cause)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrRefinementFailed) hold for any FailedError.
func (e *FailedError) Is(target error) bool {
	return target == ErrRefinementFailed
}
