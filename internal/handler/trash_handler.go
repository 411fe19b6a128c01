package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-fileops/internal/model"
	"go-fileops/internal/service"
	"go-fileops/pkg/apierror"
)

type TrashHandler struct {
	engine *service.Engine
}

func NewTrashHandler(engine *service.Engine) *TrashHandler {
	return &TrashHandler{engine: engine}
}

func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.ListTrash(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries, nil)
}

func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.RestoreTrash(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("trash entry restored", "id", entry.ID, "path", entry.OriginalPath, "actor", actorFromRequest(r))
	writeSuccess(w, http.StatusOK, entry, nil)
}

// RestoreMany restores each id independently and reports per-id failures.
func (h *TrashHandler) RestoreMany(w http.ResponseWriter, r *http.Request) {
	var payload model.RestoreRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if len(payload.IDs) == 0 {
		writeError(w, apierror.BadRequest("ids must not be empty", "ids"))
		return
	}

	response := model.RestoreResponse{
		Restored: make([]model.TrashEntry, 0, len(payload.IDs)),
		Failed:   make([]model.RestoreFailure, 0),
	}
	for _, id := range payload.IDs {
		entry, err := h.engine.RestoreTrash(r.Context(), id)
		if err != nil {
			response.Failed = append(response.Failed, model.RestoreFailure{ID: id, Reason: err.Error()})
			continue
		}
		response.Restored = append(response.Restored, entry)
	}

	status := http.StatusOK
	if len(response.Restored) == 0 {
		status = http.StatusConflict
	}
	writeSuccess(w, status, response, nil)
}

func (h *TrashHandler) Remove(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.RemoveTrash(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entry, nil)
}

func (h *TrashHandler) Empty(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.EmptyTrash(r.Context())
	if err != nil && !errors.Is(err, r.Context().Err()) {
		writeError(w, err)
		return
	}

	slog.Info("trash emptied", "removed", result.Removed, "failed", len(result.Failures), "actor", actorFromRequest(r))
	writeSuccess(w, http.StatusOK, result, nil)
}
