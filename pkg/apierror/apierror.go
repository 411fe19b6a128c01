package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes shared by the HTTP envelope and the CLI's JSON output.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeNotConfigured      = "NOT_CONFIGURED"
	CodeInvalidPath        = "INVALID_PATH"
	CodePathTooLong        = "PATH_TOO_LONG"
	CodePathTraversal      = "PATH_TRAVERSAL"
	CodeInvalidFilename    = "INVALID_FILENAME"
	CodePlanningFailed     = "PLANNING_FAILED"
	CodeOperationFinished  = "OPERATION_FINISHED"
	CodeNoPendingConflict  = "NO_PENDING_CONFLICT"
	CodeRestoreUnavailable = "RESTORE_UNAVAILABLE"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeUnavailable        = "UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeRequestTimeout     = "REQUEST_TIMEOUT"
	CodeInternal           = "INTERNAL_ERROR"
)

// APIError is an error that already knows how it is reported to callers.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

// NotConfigured reports an optional feature that is switched off.
func NotConfigured(message string, details string) *APIError {
	return New(CodeNotConfigured, message, details, http.StatusNotFound)
}

func InvalidFilename(message string, name string) *APIError {
	return New(CodeInvalidFilename, message, name, http.StatusBadRequest)
}

// From returns the APIError in err's chain.
func From(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
