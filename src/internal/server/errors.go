// FILE: muxd/src/internal/server/errors.go
package server

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is returned by Start when a required field is unset
	ErrPrecondition = errors.New("start precondition failed")
	// ErrEngineStart wraps every failure to allocate or configure the engine
	ErrEngineStart = errors.New("engine start failed")
)

// EngineError reports a failed engine allocation or registration step.
// The process cannot recover a half-started engine and should exit.
type EngineError struct {
	Op       string
	Listener string
	Err      error
}

func (e *EngineError) Error() string {
	if e.Listener != "" {
		return fmt.Sprintf("engine %s (%s): %v", e.Op, e.Listener, e.Err)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	return target == ErrEngineStart
}

func preconditionErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
