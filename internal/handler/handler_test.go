package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
	"go-fileops/internal/service"
	"go-fileops/internal/storage"
	"go-fileops/pkg/apierror"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func newTestEngine(t *testing.T) *service.Engine {
	t.Helper()
	base := t.TempDir()
	fsys := storage.OS{}

	validator, err := storage.NewPathValidator("")
	require.NoError(t, err)
	trash, err := service.NewTrashService(fsys, filepath.Join(base, "Trash"), 4096)
	require.NoError(t, err)
	oplog, err := service.NewOperationLog(service.OperationLogConfig{Dir: filepath.Join(base, "logs")})
	require.NoError(t, err)

	engine := service.NewEngine(service.EngineDeps{
		Planner:  service.NewPlanner(fsys, service.NewScanner(fsys, false), validator),
		Executor: service.NewExecutor(fsys, trash, nil, service.ExecutorConfig{ChunkSize: 4096}),
		Trash:    trash,
		Log:      oplog,
	}, service.EngineConfig{ProgressInterval: time.Millisecond})

	t.Cleanup(func() { _ = engine.Shutdown(context.Background()) })
	return engine
}

func newTestRouter(engine *service.Engine, history HistoryReader) http.Handler {
	ops := NewOperationsHandler(engine, history)
	logs := NewLogHandler(engine)
	trash := NewTrashHandler(engine)

	r := chi.NewRouter()
	r.Post("/operations", ops.Submit)
	r.Get("/operations", ops.List)
	r.Get("/operations/history", ops.History)
	r.Get("/operations/{id}", ops.Get)
	r.Post("/operations/{id}/cancel", ops.Cancel)
	r.Post("/operations/{id}/conflicts/{step_id}", ops.ResolveConflict)
	r.Get("/log", logs.List)
	r.Get("/trash", trash.List)
	r.Post("/trash/restore", trash.RestoreMany)
	r.Post("/trash/{id}/restore", trash.Restore)
	r.Delete("/trash/{id}", trash.Remove)
	r.Delete("/trash", trash.Empty)
	return r
}

func call(t *testing.T, h http.Handler, method string, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		encoded, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func waitTerminal(t *testing.T, engine *service.Engine, id string) model.Operation {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	op, err := engine.Wait(ctx, id)
	require.NoError(t, err)
	return op
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error", apierror.New("PATH_TRAVERSAL", "nope", "", http.StatusForbidden), http.StatusForbidden, "PATH_TRAVERSAL"},
		{"planning", &model.PlanningError{Path: "/x", Reason: "source does not exist"}, http.StatusUnprocessableEntity, "PLANNING_FAILED"},
		{"operation not found", fmt.Errorf("%w: abc", model.ErrOperationNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"finished", model.ErrOperationFinished, http.StatusConflict, "OPERATION_FINISHED"},
		{"no pending conflict", model.ErrNoPendingConflict, http.StatusConflict, "NO_PENDING_CONFLICT"},
		{"closed", model.ErrEngineClosed, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"restore unavailable", model.ErrRestoreUnavailable, http.StatusConflict, "RESTORE_UNAVAILABLE"},
		{"path conflict", model.ErrPathConflict, http.StatusConflict, "CONFLICT"},
		{"permission", &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}, http.StatusForbidden, "PERMISSION_DENIED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestSubmitAndGetOperation(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644))
	engine := newTestEngine(t)
	h := newTestRouter(engine, nil)

	status, env := call(t, h, http.MethodPost, "/operations", map[string]any{
		"type":        "COPY",
		"sources":     []string{filepath.Join(root, "a.txt")},
		"destination": filepath.Join(root, "b.txt"),
	})
	require.Equal(t, http.StatusAccepted, status)

	var submitted submitResponse
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	require.NotEmpty(t, submitted.OperationID)
	waitTerminal(t, engine, submitted.OperationID)

	status, env = call(t, h, http.MethodGet, "/operations/"+submitted.OperationID, nil)
	require.Equal(t, http.StatusOK, status)
	var op model.Operation
	require.NoError(t, json.Unmarshal(env.Data, &op))
	assert.Equal(t, model.StatusSucceeded, op.Status)
	assert.Equal(t, model.OperationCopy, op.Type)

	status, env = call(t, h, http.MethodGet, "/operations?status=failed", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(env.Data))

	status, env = call(t, h, http.MethodPost, "/operations/"+submitted.OperationID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "OPERATION_FINISHED", env.Error.Code)
}

func TestSubmitValidation(t *testing.T) {
	h := newTestRouter(newTestEngine(t), nil)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"unknown field", `{"type":"copy","sources":["/x"],"bogus":true}`},
		{"bad type", map[string]any{"type": "shred", "sources": []string{"/x"}}},
		{"bad conflict policy", map[string]any{"type": "delete", "sources": []string{"/x"}, "conflict_policy": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := call(t, h, http.MethodPost, "/operations", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "BAD_REQUEST", env.Error.Code)
		})
	}
}

func TestOperationNotFoundAndBadStep(t *testing.T) {
	h := newTestRouter(newTestEngine(t), nil)

	status, env := call(t, h, http.MethodGet, "/operations/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, env = call(t, h, http.MethodPost, "/operations/missing/conflicts/abc", map[string]string{"action": "skip"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	status, env = call(t, h, http.MethodGet, "/operations/history", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_CONFIGURED", env.Error.Code)
}

type fakeHistory struct {
	ops map[string]model.Operation
}

func (f *fakeHistory) List(_ context.Context, page int, limit int) ([]model.Operation, model.Meta, error) {
	items := make([]model.Operation, 0, len(f.ops))
	for _, op := range f.ops {
		items = append(items, op)
	}
	return items, model.NewMeta(page, limit, len(items)), nil
}

func (f *fakeHistory) FindByID(_ context.Context, id string) (model.Operation, error) {
	op, ok := f.ops[id]
	if !ok {
		return model.Operation{}, model.ErrOperationNotFound
	}
	return op, nil
}

func TestGetFallsBackToHistory(t *testing.T) {
	history := &fakeHistory{ops: map[string]model.Operation{
		"old-op": {ID: "old-op", Type: model.OperationMove, Status: model.StatusFailed},
	}}
	h := newTestRouter(newTestEngine(t), history)

	status, env := call(t, h, http.MethodGet, "/operations/old-op", nil)
	require.Equal(t, http.StatusOK, status)
	var op model.Operation
	require.NoError(t, json.Unmarshal(env.Data, &op))
	assert.Equal(t, model.StatusFailed, op.Status)

	status, env = call(t, h, http.MethodGet, "/operations/history?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)
	assert.Equal(t, 10, env.Meta.Limit)
}

func TestLogPagination(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t)
	h := newTestRouter(engine, nil)

	for i := range 5 {
		name := filepath.Join(root, fmt.Sprintf("f%d.txt", i))
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
		id, err := engine.Submit(context.Background(), model.OperationRequest{Type: model.OperationDelete, Sources: []string{name}})
		require.NoError(t, err)
		waitTerminal(t, engine, id)
	}

	status, env := call(t, h, http.MethodGet, "/log?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	var data model.LogListData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Items, 2)
	assert.Equal(t, filepath.Join(root, "f2.txt"), data.Items[0].Sources[0])
	assert.Equal(t, model.Meta{Page: 2, Limit: 2, Total: 5, TotalPages: 3}, *env.Meta)

	status, env = call(t, h, http.MethodGet, "/log?name=f4", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Meta.Total)

	status, env = call(t, h, http.MethodGet, "/log?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestTrashEndpoints(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t)
	h := newTestRouter(engine, nil)

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}
	id, err := engine.Submit(context.Background(), model.OperationRequest{
		Type:    model.OperationDelete,
		Sources: []string{filepath.Join(root, "one.txt"), filepath.Join(root, "two.txt"), filepath.Join(root, "three.txt")},
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusSucceeded, waitTerminal(t, engine, id).Status)

	status, env := call(t, h, http.MethodGet, "/trash", nil)
	require.Equal(t, http.StatusOK, status)
	var entries []model.TrashEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 3)

	status, _ = call(t, h, http.MethodPost, "/trash/one.txt/restore", nil)
	require.Equal(t, http.StatusOK, status)
	assert.FileExists(t, filepath.Join(root, "one.txt"))

	status, env = call(t, h, http.MethodPost, "/trash/restore", model.RestoreRequest{IDs: []string{"two.txt", "nope"}})
	require.Equal(t, http.StatusOK, status)
	var restored model.RestoreResponse
	require.NoError(t, json.Unmarshal(env.Data, &restored))
	assert.Len(t, restored.Restored, 1)
	require.Len(t, restored.Failed, 1)
	assert.Equal(t, "nope", restored.Failed[0].ID)

	status, _ = call(t, h, http.MethodPost, "/trash/restore", model.RestoreRequest{IDs: []string{"nope"}})
	assert.Equal(t, http.StatusConflict, status)

	status, env = call(t, h, http.MethodPost, "/trash/missing/restore", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, env = call(t, h, http.MethodDelete, "/trash", nil)
	require.Equal(t, http.StatusOK, status)
	var emptied model.EmptyTrashResult
	require.NoError(t, json.Unmarshal(env.Data, &emptied))
	assert.Equal(t, 1, emptied.Removed)
	assert.NoFileExists(t, filepath.Join(root, "three.txt"))
}
