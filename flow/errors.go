package flow

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning       = errors.New("flow is not running")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrInvalidCommand   = errors.New("invalid command, use 'start', 'continue', 'stop' or 'restart'")
	ErrUnknownFlow      = errors.New("unknown flow kind")
	ErrStoreUnavailable = errors.New("flow store unavailable")
	ErrDuplicateFlow    = errors.New("flow kind already registered")
	ErrEmptyFlow        = errors.New("flow has no steps")
)

// StepExecutionError wraps whatever a step body returned or panicked with.
type StepExecutionError struct {
	Kind     string
	Step     int
	StepName string
	Err      error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %d (%s) of flow %s failed: %v", e.Step, e.StepName, e.Kind, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}
