package model

import (
	"errors"
	"fmt"
)

var (
	// Operation related errors
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationFinished = errors.New("operation already finished")
	ErrNoPendingConflict = errors.New("no pending conflict for step")
	ErrEngineClosed      = errors.New("engine is shut down")

	// File/Directory related errors
	ErrPathConflict = errors.New("path conflict")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")

	// Trash related errors
	ErrTrashItemNotFound  = errors.New("trash item not found")
	ErrRestoreUnavailable = errors.New("restore unavailable: trash metadata missing")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// PlanningError aborts an operation before any step runs.
type PlanningError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	msg := "planning failed"
	if e.Path != "" {
		msg += fmt.Sprintf(" for %q", e.Path)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlanningError) Unwrap() error { return e.Err }

type StepErrorKind string

const (
	StepErrPermission    StepErrorKind = "permission_denied"
	StepErrInUse         StepErrorKind = "file_in_use"
	StepErrPathTooLong   StepErrorKind = "path_too_long"
	StepErrMissingSource StepErrorKind = "missing_source"
	StepErrNoSpace       StepErrorKind = "no_space"
	StepErrExists        StepErrorKind = "destination_exists"
	StepErrCrossDevice   StepErrorKind = "cross_device"
	StepErrNotEmpty      StepErrorKind = "not_empty"
	StepErrVerification  StepErrorKind = "verification"
	StepErrConflict      StepErrorKind = "conflict"
	StepErrDependency    StepErrorKind = "dependency_failed"
	StepErrIO            StepErrorKind = "io"
)

// StepError is captured per step and never aborts unrelated steps.
type StepError struct {
	StepID int
	Path   string
	Kind   StepErrorKind
	Err    error
}

func (e *StepError) Error() string {
	if e.StepID == 0 {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("step %d %s (%s): %v", e.StepID, e.Kind, e.Path, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ConflictError ends only the step that was waiting for a decision.
type ConflictError struct {
	StepID int
	Path   string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict at %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("conflict at %q: %s", e.Path, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// TrashError is reported without failing a deletion that already happened.
type TrashError struct {
	Op   string
	Path string
	Err  error
}

func (e *TrashError) Error() string {
	return fmt.Sprintf("trash %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *TrashError) Unwrap() error { return e.Err }

// LogWriteError is always a warning.
type LogWriteError struct {
	Path string
	Err  error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("operation log write %q: %v", e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }
