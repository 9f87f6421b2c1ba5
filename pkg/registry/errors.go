package registry

import (
	"errors"
	"fmt"
)

var (
	ErrStageNotFound    = errors.New("stage not found")
	ErrUnknownOperation = errors.New("unknown operation")
)

// StageNotFoundError is returned for a stage that is neither part of the
// operation mapping nor named in the config.
type StageNotFoundError struct {
	Stage string
}

func (e *StageNotFoundError) Error() string {
	return fmt.Sprintf("stage %q not found", e.Stage)
}

func (e *StageNotFoundError) Unwrap() error { return ErrStageNotFound }

// UnknownOperationError is returned for an operation outside the fixed set.
type UnknownOperationError struct {
	Operation string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Operation)
}

func (e *UnknownOperationError) Unwrap() error { return ErrUnknownOperation }
