package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

// snapshotTree maps every regular file below root to its content.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(root, path)
			require.NoError(t, relErr)
			out[rel] = readFile(t, path)
		}
		return nil
	}))
	return out
}

func newTestPlanner(t *testing.T, fsys storage.FS, followSymlinks bool) *Planner {
	t.Helper()
	validator, err := storage.NewPathValidator("")
	require.NoError(t, err)
	return NewPlanner(fsys, NewScanner(fsys, followSymlinks), validator)
}

type testEnv struct {
	fs       storage.FS
	planner  *Planner
	trash    *TrashService
	executor *Executor
	log      *OperationLog
	engine   *Engine
}

func newTestEnv(t *testing.T, fsys storage.FS, cfg EngineConfig) *testEnv {
	t.Helper()
	if fsys == nil {
		fsys = storage.OS{}
	}
	base := t.TempDir()

	trash, err := NewTrashService(fsys, filepath.Join(base, "Trash"), 4096)
	require.NoError(t, err)
	oplog, err := NewOperationLog(OperationLogConfig{Dir: filepath.Join(base, "logs"), MaxBytes: 1 << 20, MaxFiles: 3})
	require.NoError(t, err)

	env := &testEnv{
		fs:      fsys,
		planner: newTestPlanner(t, fsys, false),
		trash:   trash,
		log:     oplog,
		executor: NewExecutor(fsys, trash, nil, ExecutorConfig{
			ChunkSize:        4096,
			ProgressInterval: time.Millisecond,
		}),
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = time.Millisecond
	}
	env.engine = NewEngine(EngineDeps{
		Planner:  env.planner,
		Executor: env.executor,
		Trash:    trash,
		Log:      oplog,
	}, cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.engine.Shutdown(ctx)
	})
	return env
}

// execute plans and runs a request directly on the executor.
func (e *testEnv) execute(t *testing.T, request model.OperationRequest, hooks ExecutionHooks) ExecutionResult {
	t.Helper()
	plan, err := e.planner.Plan(context.Background(), request, nil)
	require.NoError(t, err)

	preference := request.Conflict
	if preference == "" {
		preference = model.ConflictAsk
	}
	return e.executor.Run(context.Background(), "test-op-1234", plan, newConflictResolver(preference), hooks)
}

func (e *testEnv) submitAndWait(t *testing.T, request model.OperationRequest) model.Operation {
	t.Helper()
	id, err := e.engine.Submit(context.Background(), request)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	op, err := e.engine.Wait(ctx, id)
	require.NoError(t, err)
	return op
}

// recordingHooks captures progress and answers conflicts from a fixed
// decision.
type recordingHooks struct {
	mu         sync.Mutex
	progress   []Progress
	requests   []model.ConflictRequest
	decision   model.ConflictDecision
	onProgress func(Progress)
}

func (h *recordingHooks) Progress(p Progress) {
	h.mu.Lock()
	h.progress = append(h.progress, p)
	callback := h.onProgress
	h.mu.Unlock()
	if callback != nil {
		callback(p)
	}
}

func (h *recordingHooks) AwaitDecision(_ context.Context, request model.ConflictRequest) (model.ConflictDecision, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, request)
	return h.decision, nil
}
