package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-fileops/internal/model"
	"go-fileops/internal/service"
	"go-fileops/pkg/apierror"
)

// HistoryReader pages through persisted operations.
type HistoryReader interface {
	List(ctx context.Context, page int, limit int) ([]model.Operation, model.Meta, error)
	FindByID(ctx context.Context, id string) (model.Operation, error)
}

type OperationsHandler struct {
	engine  *service.Engine
	history HistoryReader
}

func NewOperationsHandler(engine *service.Engine, history HistoryReader) *OperationsHandler {
	return &OperationsHandler{engine: engine, history: history}
}

type submitResponse struct {
	OperationID string `json:"operation_id"`
}

func (h *OperationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var payload model.OperationRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.Type = model.OperationType(strings.ToLower(strings.TrimSpace(string(payload.Type))))
	id, err := h.engine.Submit(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("operation submitted", "operation_id", id, "type", payload.Type, "actor", actorFromRequest(r))
	writeSuccess(w, http.StatusAccepted, submitResponse{OperationID: id}, nil)
}

func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.OperationStatus(strings.TrimSpace(r.URL.Query().Get("status")))

	items := make([]model.Operation, 0)
	for _, op := range h.engine.Operations() {
		if status != "" && op.Status != status {
			continue
		}
		items = append(items, op)
	}

	writeSuccess(w, http.StatusOK, items, nil)
}

func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, apierror.BadRequest("operation id is required", "id"))
		return
	}

	op, err := h.engine.Operation(id)
	if err != nil && h.history != nil {
		op, err = h.history.FindByID(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, op, nil)
}

func (h *OperationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.Cancel(id); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("operation cancel requested", "operation_id", id, "actor", actorFromRequest(r))
	writeSuccess(w, http.StatusAccepted, submitResponse{OperationID: id}, nil)
}

func (h *OperationsHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stepID, err := strconv.Atoi(chi.URLParam(r, "step_id"))
	if err != nil {
		writeError(w, apierror.BadRequest("step_id must be an integer", chi.URLParam(r, "step_id")))
		return
	}

	var payload model.ResolveConflictRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	decision := model.ConflictDecision{Action: payload.Action, Scope: payload.Scope}
	if err := h.engine.ResolveConflict(id, stepID, decision); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, decision, nil)
}

// History serves persisted operations when a database is configured.
func (h *OperationsHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, apierror.NotConfigured("operation history database is not configured", ""))
		return
	}

	page := parseIntOrDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 50)

	items, meta, err := h.history.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &meta)
}
