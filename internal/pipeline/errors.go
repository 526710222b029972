package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when a request carries neither a job description nor a link
	ErrNoInput = errors.New("a job description or a job description link is required")
	// ErrInvalidThreadID is returned for empty or unsafe thread ids
	ErrInvalidThreadID = errors.New("invalid thread id")
)

// StepError records which step failed. It unwraps to the step's own error so
// callers can match the workflow error kinds with errors.As.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the name of the step that produced err, or "".
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
