package update

import (
	"errors"
	"fmt"
)

// ErrLocked is returned when another launcher holds the installation lock.
var ErrLocked = errors.New("installation is locked by another launcher")

// PersistenceError reports a failure reading or writing the installed state.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PhaseError records the orchestrator phase in which a run failed.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
