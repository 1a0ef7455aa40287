package memory

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every *ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError reports a request rejected before any external call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Step names the pipeline stage that failed.
type Step string

const (
	StepClassify    Step = "classify"
	StepInstruction Step = "instruction"
	StepRule        Step = "rule"
	StepLink        Step = "link"
	StepStorage     Step = "storage"
	StepEmbedding   Step = "embedding"
	StepSearch      Step = "search"
)

// StepError wraps the failure of one pipeline stage.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the stage recorded in err, or "" when err carries none.
func FailedStep(err error) Step {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}
