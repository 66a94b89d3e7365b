package ecsched

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error in this package matches exactly one of
// these through errors.Is.
var (
	ErrDuplicateSystem                 = errors.New("ecsched: duplicate system")
	ErrDuplicateBundle                 = errors.New("ecsched: duplicate bundle")
	ErrUnknownSystem                   = errors.New("ecsched: unknown system")
	ErrInvalidDeclaration              = errors.New("ecsched: invalid declaration")
	ErrCyclicDependency                = errors.New("ecsched: cyclic dependency")
	ErrUnknownSystemReference          = errors.New("ecsched: unknown system reference")
	ErrConflictingMainThreadConstraint = errors.New("ecsched: conflicting main thread constraint")
	ErrSystemRuntimeFailure            = errors.New("ecsched: system runtime failure")
)

// DuplicateSystemError is returned when a system id is registered twice.
type DuplicateSystemError struct {
	ID SystemID
}

func (e *DuplicateSystemError) Error() string {
	return fmt.Sprintf("ecsched: system %q already registered", e.ID)
}

func (e *DuplicateSystemError) Is(target error) bool { return target == ErrDuplicateSystem }

// CyclicDependencyError reports one dependency cycle. Cycle starts at its
// smallest id and lists every member once, in edge order.
type CyclicDependencyError struct {
	Cycle []SystemID
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCyclicDependency.Error()
	}
	parts := make([]string, 0, len(e.Cycle)+1)
	for _, id := range e.Cycle {
		parts = append(parts, string(id))
	}
	parts = append(parts, string(e.Cycle[0]))
	return "ecsched: cyclic dependency: " + strings.Join(parts, " -> ")
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicDependency }

// UnknownSystemReferenceError is returned when an ordering edge names a system
// that is not registered.
type UnknownSystemReferenceError struct {
	From    SystemID
	Missing SystemID
}

func (e *UnknownSystemReferenceError) Error() string {
	return fmt.Sprintf("ecsched: system %q references unknown system %q", e.From, e.Missing)
}

func (e *UnknownSystemReferenceError) Is(target error) bool {
	return target == ErrUnknownSystemReference
}

// PlacementError is raised by the planner's post-levelling verification when
// two systems ended up in an order or stage their relationship forbids.
type PlacementError struct {
	From   SystemID
	To     SystemID
	Reason string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("ecsched: invalid placement of %q and %q: %s", e.From, e.To, e.Reason)
}

func (e *PlacementError) Is(target error) bool {
	return target == ErrConflictingMainThreadConstraint
}

// SystemRuntimeError records a single failed system update. It wraps the
// error returned by the system, or a synthesized error for a recovered panic.
type SystemRuntimeError struct {
	System   SystemID
	Stage    int
	Tick     uint64
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *SystemRuntimeError) Error() string {
	kind := "failed"
	if e.Panicked {
		kind = "panicked"
	}
	return fmt.Sprintf("ecsched: system %q %s (stage %d, tick %d): %v", e.System, kind, e.Stage, e.Tick, e.Err)
}

func (e *SystemRuntimeError) Unwrap() error { return e.Err }

func (e *SystemRuntimeError) Is(target error) bool { return target == ErrSystemRuntimeFailure }

func invalidDeclaration(id SystemID, format string, args ...any) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidDeclaration, id, fmt.Sprintf(format, args...))
}
