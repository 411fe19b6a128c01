package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go-fileops/internal/model"
	"go-fileops/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var planErr *model.PlanningError
	if apiErr, ok := apierror.From(err); ok {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &planErr) {
		status = http.StatusUnprocessableEntity
		body.Code = apierror.CodePlanningFailed
		body.Message = planErr.Reason
		body.Details = planErr.Path
	} else if errors.Is(err, model.ErrOperationNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "Operation not found"
	} else if errors.Is(err, model.ErrOperationFinished) {
		status = http.StatusConflict
		body.Code = apierror.CodeOperationFinished
		body.Message = "Operation already finished"
	} else if errors.Is(err, model.ErrNoPendingConflict) {
		status = http.StatusConflict
		body.Code = apierror.CodeNoPendingConflict
		body.Message = "No conflict is waiting for a decision on that step"
	} else if errors.Is(err, model.ErrEngineClosed) {
		status = http.StatusServiceUnavailable
		body.Code = apierror.CodeUnavailable
		body.Message = "Server is shutting down"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrTrashItemNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "Trash item not found"
	} else if errors.Is(err, model.ErrRestoreUnavailable) {
		status = http.StatusConflict
		body.Code = apierror.CodeRestoreUnavailable
		body.Message = "Original location unknown; trash metadata is missing"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrPathConflict) {
		status = http.StatusConflict
		body.Code = apierror.CodeConflict
		body.Message = "Path already exists"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Message = "Invalid input"
	} else if errors.Is(err, os.ErrPermission) {
		status = http.StatusForbidden
		body.Code = apierror.CodePermissionDenied
		body.Message = "Permission denied on the filesystem"
		body.Details = err.Error()
	} else if errors.Is(err, os.ErrNotExist) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "Path not found"
		body.Details = err.Error()
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
