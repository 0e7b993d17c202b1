package task

import (
	"errors"
	"fmt"
)

// ProcessError wraps an error returned by user processing logic.
type ProcessError struct {
	Cause  error
	Offset int64
	Lane   int
}

func (e *ProcessError) Error() string {
	return e.Cause.Error()
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

func NewProcessError(cause error, offset int64, lane int) error {
	return &ProcessError{
		Cause:  cause,
		Offset: offset,
		Lane:   lane,
	}
}

func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe, true
	}

	return nil, false
}

// PanicError carries a value recovered from user processing logic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("processor panicked: %v", e.Value)
}

func AsPanicError(err error) (*PanicError, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
