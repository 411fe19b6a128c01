package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"go-fileops/internal/event"
	"go-fileops/internal/metrics"
	"go-fileops/internal/model"
	"go-fileops/pkg/apierror"
)

type EngineConfig struct {
	MaxConcurrent    int
	History          int
	DefaultConflict  model.ConflictAction
	DefaultPermanent bool
	ProgressInterval time.Duration
}

// OperationStore persists finished operations. It is optional.
type OperationStore interface {
	Save(ctx context.Context, operation model.Operation) error
}

// Engine owns every operation. Callers talk to it only through its methods
// and the events it publishes; snapshots handed out are copies.
type Engine struct {
	planner  *Planner
	executor *Executor
	trash    *TrashService
	oplog    *OperationLog
	bus      event.Bus
	metrics  *metrics.Metrics
	store    OperationStore
	cfg      EngineConfig
	slots    *semaphore.Weighted

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.RWMutex
	ops      map[string]*operationState
	finished []string
	closed   bool
}

type operationState struct {
	snapshot model.Operation
	request  model.OperationRequest
	cancel   context.CancelFunc
	ctx      context.Context
	done     chan struct{}
	resolver *conflictResolver
	pending  map[int]chan model.ConflictDecision
}

type EngineDeps struct {
	Planner  *Planner
	Executor *Executor
	Trash    *TrashService
	Log      *OperationLog
	Bus      event.Bus
	Metrics  *metrics.Metrics
	Store    OperationStore
}

func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.History <= 0 {
		cfg.History = 256
	}
	if cfg.DefaultConflict == "" {
		cfg.DefaultConflict = model.ConflictAsk
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus()
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &Engine{
		planner:  deps.Planner,
		executor: deps.Executor,
		trash:    deps.Trash,
		oplog:    deps.Log,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		store:    deps.Store,
		cfg:      cfg,
		slots:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		baseCtx:  baseCtx,
		stop:     stop,
		ops:      map[string]*operationState{},
	}
}

func (e *Engine) Bus() event.Bus {
	return e.bus
}

// Submit registers an operation and starts it in the background. The
// operation outlives ctx; use Cancel to stop it.
func (e *Engine) Submit(ctx context.Context, request model.OperationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !request.Type.Valid() {
		return "", apierror.BadRequest("type must be one of: copy|move|delete|rename", string(request.Type))
	}

	preference, err := NormalizeConflictAction(string(request.Conflict), e.cfg.DefaultConflict)
	if err != nil {
		return "", err
	}
	request.Conflict = preference
	if request.Type == model.OperationDelete && e.cfg.DefaultPermanent {
		request.Permanent = true
	}

	opCtx, cancel := context.WithCancel(e.baseCtx)
	state := &operationState{
		snapshot: model.Operation{
			ID:          uuid.NewString(),
			Type:        request.Type,
			Sources:     append([]string(nil), request.Sources...),
			Destination: request.Destination,
			Conflict:    preference,
			Permanent:   request.Permanent,
			Status:      model.StatusPending,
			CreatedAt:   time.Now().UTC(),
		},
		request:  request,
		ctx:      opCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		resolver: newConflictResolver(preference),
		pending:  map[int]chan model.ConflictDecision{},
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return "", model.ErrEngineClosed
	}
	e.ops[state.snapshot.ID] = state
	e.wg.Add(1)
	e.mu.Unlock()

	e.metrics.OperationQueued()
	e.bus.Publish(event.New(event.TypeOperationSubmitted, event.OperationPayload{
		OperationID: state.snapshot.ID,
		Type:        request.Type,
		Sources:     state.snapshot.Sources,
		Destination: request.Destination,
	}))

	go e.run(state)
	return state.snapshot.ID, nil
}

func (e *Engine) run(state *operationState) {
	defer e.wg.Done()
	id := state.snapshot.ID
	log := slog.With("operation_id", id)

	if err := e.slots.Acquire(state.ctx, 1); err != nil {
		e.finalize(state, ExecutionResult{Status: model.StatusCancelled}, "cancelled before start", time.Time{})
		return
	}
	defer e.slots.Release(1)

	startedAt := time.Now().UTC()
	e.update(state, func(op *model.Operation) {
		op.Status = model.StatusRunning
		op.StartedAt = &startedAt
	})
	e.metrics.OperationStarted()
	e.bus.Publish(event.New(event.TypeOperationStarted, event.OperationPayload{
		OperationID: id,
		Type:        state.request.Type,
		Sources:     state.snapshot.Sources,
		Destination: state.request.Destination,
	}))
	log.Info("operation started", "type", state.request.Type, "sources", len(state.request.Sources))

	scanThrottle := rate.Sometimes{Interval: e.cfg.ProgressInterval}
	plan, err := e.planner.Plan(state.ctx, state.request, func(items int, bytes int64) {
		scanThrottle.Do(func() {
			e.publishProgress(state, func(op *model.Operation) {
				op.ItemsTotal = items
				op.BytesTotal = bytes
			})
		})
	})
	if err != nil {
		status := model.StatusFailed
		if state.ctx.Err() != nil {
			status = model.StatusCancelled
		}
		log.Warn("planning failed", "error", err)
		e.finalize(state, ExecutionResult{Status: status}, err.Error(), startedAt)
		return
	}

	e.update(state, func(op *model.Operation) {
		op.BytesTotal = plan.BytesTotal
		op.ItemsTotal = plan.StepsTotal
	})

	result := e.executor.Run(state.ctx, id, plan, state.resolver, &operationHooks{engine: e, state: state})
	e.finalize(state, result, "", startedAt)
}

func (e *Engine) finalize(state *operationState, result ExecutionResult, errText string, startedAt time.Time) {
	id := state.snapshot.ID
	finishedAt := time.Now().UTC()

	record := model.LogRecord{
		Timestamp:    finishedAt,
		OperationID:  id,
		Action:       string(state.request.Type),
		Sources:      append([]string(nil), state.request.Sources...),
		Destinations: result.Destinations,
		Outcome:      outcomeFor(result.Status),
		ErrorDetail:  errText,
		Warnings:     result.Warnings,
	}
	if record.ErrorDetail == "" && len(result.Failures) > 0 {
		record.ErrorDetail = fmt.Sprintf("%d step(s) failed; first: %s", len(result.Failures), result.Failures[0].Reason)
	}

	warnings := append([]string(nil), result.Warnings...)
	if warning := e.appendLog(record); warning != "" {
		warnings = append(warnings, warning)
	}

	e.mu.Lock()
	op := &state.snapshot
	op.Status = result.Status
	op.FinishedAt = &finishedAt
	op.Summary = result.Summary
	op.Failures = append([]model.StepFailure(nil), result.Failures...)
	op.Warnings = warnings
	op.Destinations = append([]string(nil), result.Destinations...)
	op.Error = errText
	op.PendingConflict = nil
	if result.BytesDone > op.BytesDone {
		op.BytesDone = result.BytesDone
	}
	if result.ItemsDone > op.ItemsDone {
		op.ItemsDone = result.ItemsDone
	}
	op.CurrentPath = ""
	snapshot := op.Clone()
	e.finished = append(e.finished, id)
	e.evictLocked()
	e.mu.Unlock()

	state.cancel()
	close(state.done)

	e.metrics.OperationFinished(string(snapshot.Type), string(snapshot.Status), startedAt)
	if e.store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.store.Save(saveCtx, snapshot); err != nil {
			slog.Warn("operation history not saved", "operation_id", id, "error", err)
		}
		cancel()
	}

	slog.Info("operation finished", "operation_id", id, "status", snapshot.Status,
		"succeeded", snapshot.Summary.Succeeded, "failed", snapshot.Summary.Failed,
		"skipped", snapshot.Summary.Skipped, "cancelled", snapshot.Summary.Cancelled)

	e.bus.Publish(event.New(event.TypeOperationCompleted, event.CompletedPayload{
		OperationID: id,
		Status:      snapshot.Status,
		Summary:     snapshot.Summary,
		Failures:    snapshot.Failures,
		Warnings:    snapshot.Warnings,
		Error:       snapshot.Error,
	}))
}

// appendLog writes a record and returns a warning instead of failing.
func (e *Engine) appendLog(record model.LogRecord) string {
	if e.oplog == nil {
		return ""
	}

	if err := e.oplog.Append(record); err != nil {
		e.metrics.LogWriteFailed()
		slog.Warn("operation log write failed", "operation_id", record.OperationID, "error", err)

		var writeErr *model.LogWriteError
		path := e.oplog.Path()
		if errors.As(err, &writeErr) {
			path = writeErr.Path
		}
		e.bus.Publish(event.New(event.TypeLogWriteFailed, event.LogFailurePayload{
			OperationID: record.OperationID,
			Path:        path,
			Error:       err.Error(),
		}))
		return err.Error()
	}

	e.bus.Publish(event.New(event.TypeLogAppended, record))
	return ""
}

func outcomeFor(status model.OperationStatus) model.LogOutcome {
	switch status {
	case model.StatusSucceeded:
		return model.OutcomeSucceeded
	case model.StatusCancelled:
		return model.OutcomeCancelled
	default:
		return model.OutcomeFailed
	}
}

func (e *Engine) evictLocked() {
	for len(e.finished) > e.cfg.History {
		delete(e.ops, e.finished[0])
		e.finished = e.finished[1:]
	}
}

func (e *Engine) update(state *operationState, mutate func(op *model.Operation)) model.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&state.snapshot)
	return state.snapshot.Clone()
}

func (e *Engine) publishProgress(state *operationState, mutate func(op *model.Operation)) {
	snapshot := e.update(state, mutate)
	e.bus.Publish(event.New(event.TypeOperationProgress, event.ProgressPayload{
		OperationID: snapshot.ID,
		BytesDone:   snapshot.BytesDone,
		BytesTotal:  snapshot.BytesTotal,
		ItemsDone:   snapshot.ItemsDone,
		ItemsTotal:  snapshot.ItemsTotal,
		CurrentPath: snapshot.CurrentPath,
	}))
}

type operationHooks struct {
	engine *Engine
	state  *operationState
}

func (h *operationHooks) Progress(progress Progress) {
	h.engine.publishProgress(h.state, func(op *model.Operation) {
		if progress.BytesDone > op.BytesDone {
			op.BytesDone = progress.BytesDone
		}
		if progress.ItemsDone > op.ItemsDone {
			op.ItemsDone = progress.ItemsDone
		}
		op.CurrentPath = progress.CurrentPath
	})
}

func (h *operationHooks) AwaitDecision(ctx context.Context, request model.ConflictRequest) (model.ConflictDecision, error) {
	decisions := make(chan model.ConflictDecision, 1)

	h.engine.update(h.state, func(op *model.Operation) {
		h.state.pending[request.StepID] = decisions
		pending := request
		op.PendingConflict = &pending
	})
	defer h.engine.update(h.state, func(op *model.Operation) {
		delete(h.state.pending, request.StepID)
		op.PendingConflict = nil
	})

	h.engine.bus.Publish(event.New(event.TypeConflictRequested, request))

	select {
	case decision := <-decisions:
		return decision, nil
	case <-ctx.Done():
		return model.ConflictDecision{}, ctx.Err()
	}
}

func (e *Engine) lookup(id string) (*operationState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, exists := e.ops[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", model.ErrOperationNotFound, id)
	}
	return state, nil
}

// Cancel requests cooperative cancellation. Queued operations end without
// starting.
func (e *Engine) Cancel(id string) error {
	state, err := e.lookup(id)
	if err != nil {
		return err
	}

	e.mu.RLock()
	terminal := state.snapshot.Status.Terminal()
	e.mu.RUnlock()
	if terminal {
		return fmt.Errorf("%w: %s", model.ErrOperationFinished, id)
	}

	state.cancel()
	return nil
}

// ResolveConflict delivers a decision to the step waiting on it.
func (e *Engine) ResolveConflict(id string, stepID int, decision model.ConflictDecision) error {
	normalized, err := normalizeConflictDecision(decision)
	if err != nil {
		return err
	}

	state, err := e.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if state.snapshot.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", model.ErrOperationFinished, id)
	}
	decisions, waiting := state.pending[stepID]
	if waiting {
		delete(state.pending, stepID)
	}
	e.mu.Unlock()

	if !waiting {
		return fmt.Errorf("%w: operation %s step %d", model.ErrNoPendingConflict, id, stepID)
	}

	decisions <- normalized
	return nil
}

func (e *Engine) Operation(id string) (model.Operation, error) {
	state, err := e.lookup(id)
	if err != nil {
		return model.Operation{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return state.snapshot.Clone(), nil
}

// Operations returns snapshots of retained operations, oldest first.
func (e *Engine) Operations() []model.Operation {
	e.mu.RLock()
	out := make([]model.Operation, 0, len(e.ops))
	for _, state := range e.ops {
		out = append(out, state.snapshot.Clone())
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Wait blocks until the operation is terminal or ctx ends.
func (e *Engine) Wait(ctx context.Context, id string) (model.Operation, error) {
	state, err := e.lookup(id)
	if err != nil {
		return model.Operation{}, err
	}

	select {
	case <-state.done:
	case <-ctx.Done():
		return model.Operation{}, ctx.Err()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return state.snapshot.Clone(), nil
}

func (e *Engine) QueryLog(filter model.LogFilter) iter.Seq2[model.LogRecord, error] {
	if e.oplog == nil {
		return func(func(model.LogRecord, error) bool) {}
	}
	return e.oplog.Query(filter)
}

func (e *Engine) ListTrash(ctx context.Context) ([]model.TrashEntry, error) {
	return e.trash.List(ctx)
}

// RestoreTrash puts an entry back and records the action in the log.
func (e *Engine) RestoreTrash(ctx context.Context, id string) (model.TrashEntry, error) {
	entry, err := e.trash.Restore(ctx, id)

	record := model.LogRecord{
		Action:       model.ActionRestore,
		Sources:      nonEmpty(entry.TrashedPath),
		Destinations: nonEmpty(entry.OriginalPath),
		Outcome:      model.OutcomeSucceeded,
	}
	if err != nil {
		if errors.Is(err, model.ErrTrashItemNotFound) {
			return entry, err
		}
		record.Outcome = model.OutcomeFailed
		record.ErrorDetail = err.Error()
	}
	e.appendLog(record)

	if err != nil {
		return entry, err
	}

	e.metrics.Trash(model.ActionRestore, 1)
	e.bus.Publish(event.New(event.TypeTrashRestored, event.TrashPayload{Entries: []model.TrashEntry{entry}}))
	return entry, nil
}

// RemoveTrash permanently deletes one entry.
func (e *Engine) RemoveTrash(ctx context.Context, id string) (model.TrashEntry, error) {
	entry, err := e.trash.Remove(ctx, id)
	if err != nil && errors.Is(err, model.ErrTrashItemNotFound) {
		return entry, err
	}

	record := model.LogRecord{
		Action:  model.ActionTrashRemove,
		Sources: nonEmpty(entry.TrashedPath),
		Outcome: model.OutcomeSucceeded,
	}
	if err != nil {
		record.Outcome = model.OutcomeFailed
		record.ErrorDetail = err.Error()
	}
	e.appendLog(record)

	if err != nil {
		return entry, err
	}
	e.metrics.Trash(model.ActionTrashRemove, 1)
	return entry, nil
}

// EmptyTrash removes everything, continuing past individual failures.
func (e *Engine) EmptyTrash(ctx context.Context) (model.EmptyTrashResult, error) {
	result, err := e.trash.Empty(ctx)

	record := model.LogRecord{
		Action:  model.ActionEmptyTrash,
		Sources: []string{e.trash.Root()},
		Outcome: model.OutcomeSucceeded,
	}
	switch {
	case err != nil:
		record.Outcome = model.OutcomeFailed
		record.ErrorDetail = err.Error()
	case len(result.Failures) > 0:
		record.Outcome = model.OutcomeFailed
		record.ErrorDetail = fmt.Sprintf("removed %d, %d failed; first: %s", result.Removed, len(result.Failures), result.Failures[0].Reason)
	}
	e.appendLog(record)

	e.metrics.Trash(model.ActionEmptyTrash, result.Removed)
	e.bus.Publish(event.New(event.TypeTrashEmptied, event.TrashPayload{Removed: result.Removed, Failed: result.Failures}))
	return result, err
}

// Shutdown cancels every running operation and waits for them to record
// their outcome.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
