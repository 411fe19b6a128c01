package storage

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"

	"go-fileops/internal/model"
)

// IsCrossDevice reports whether a rename failed because source and target
// live on different filesystems.
func IsCrossDevice(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EXDEV) {
		return true
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "cross-device") || strings.Contains(message, "not same device")
}

// ClassifyError maps a filesystem error onto the step error kinds reported
// to callers.
func ClassifyError(err error) model.StepErrorKind {
	switch {
	case err == nil:
		return ""
	case IsCrossDevice(err):
		return model.StepErrCrossDevice
	case errors.Is(err, fs.ErrNotExist):
		return model.StepErrMissingSource
	case errors.Is(err, syscall.ENOTEMPTY):
		return model.StepErrNotEmpty
	case errors.Is(err, fs.ErrExist):
		return model.StepErrExists
	case errors.Is(err, syscall.ENAMETOOLONG):
		return model.StepErrPathTooLong
	case errors.Is(err, syscall.ENOSPC):
		return model.StepErrNoSpace
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ETXTBSY):
		return model.StepErrInUse
	case errors.Is(err, fs.ErrPermission):
		return model.StepErrPermission
	}

	var stepErr *model.StepError
	if errors.As(err, &stepErr) && stepErr.Kind != "" {
		return stepErr.Kind
	}
	var conflictErr *model.ConflictError
	if errors.As(err, &conflictErr) {
		return model.StepErrConflict
	}
	return model.StepErrIO
}
