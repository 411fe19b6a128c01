package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"go-fileops/internal/metrics"
	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

type ExecutorConfig struct {
	ChunkSize        int
	ProgressInterval time.Duration
	VerifyCopies     bool
}

// Progress is a point-in-time view of a running operation.
type Progress struct {
	BytesDone   int64
	ItemsDone   int
	CurrentPath string
}

// ExecutionHooks connects a run to whoever owns the operation.
type ExecutionHooks interface {
	Progress(progress Progress)
	// AwaitDecision blocks until the collision is decided or ctx ends.
	AwaitDecision(ctx context.Context, request model.ConflictRequest) (model.ConflictDecision, error)
}

type ExecutionResult struct {
	Status       model.OperationStatus
	Summary      model.StepSummary
	Failures     []model.StepFailure
	Warnings     []string
	Destinations []string
	Steps        []model.Step
	BytesDone    int64
	ItemsDone    int
}

// Executor carries out a plan step by step. Completed steps are never rolled
// back; cancellation is honoured between steps and between chunks.
type Executor struct {
	fs       storage.FS
	transfer *transfer
	trash    *TrashService
	metrics  *metrics.Metrics
	cfg      ExecutorConfig
}

func NewExecutor(fsys storage.FS, trash *TrashService, m *metrics.Metrics, cfg ExecutorConfig) *Executor {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	return &Executor{
		fs:       fsys,
		transfer: newTransfer(fsys, cfg.ChunkSize, cfg.VerifyCopies),
		trash:    trash,
		metrics:  m,
		cfg:      cfg,
	}
}

func (e *Executor) Run(ctx context.Context, operationID string, plan *Plan, resolver *conflictResolver, hooks ExecutionHooks) ExecutionResult {
	r := &run{
		executor:    e,
		ctx:         ctx,
		operationID: operationID,
		plan:        plan,
		resolver:    resolver,
		hooks:       hooks,
		throttle:    rate.Sometimes{Interval: e.cfg.ProgressInterval},
		log:         slog.With("operation_id", operationID),
	}
	r.result.Warnings = append(r.result.Warnings, plan.Warnings...)

	for _, item := range plan.Items {
		if r.stopped() {
			r.settle(item.Steps, model.StepCancelled)
			continue
		}
		if item.NoOp {
			r.result.Destinations = append(r.result.Destinations, item.Target)
			continue
		}
		r.runItem(item)
	}

	r.emit(true)
	return r.finish()
}

type run struct {
	executor    *Executor
	ctx         context.Context
	operationID string
	plan        *Plan
	resolver    *conflictResolver
	hooks       ExecutionHooks
	throttle    rate.Sometimes
	log         *slog.Logger

	bytesDone int64
	itemsDone int
	current   string
	cancelled bool
	result    ExecutionResult
}

// stopped reports whether cancellation has been observed.
func (r *run) stopped() bool {
	if r.cancelled {
		return true
	}
	if r.ctx.Err() != nil {
		r.cancelled = true
	}
	return r.cancelled
}

func (r *run) emit(force bool) {
	if r.hooks == nil {
		return
	}
	progress := Progress{BytesDone: r.bytesDone, ItemsDone: r.itemsDone, CurrentPath: r.current}
	if force {
		r.hooks.Progress(progress)
		return
	}
	r.throttle.Do(func() { r.hooks.Progress(progress) })
}

func (r *run) addBytes(n int64) {
	if n <= 0 {
		return
	}
	r.executor.metrics.AddBytes(n)
	r.bytesDone += n
	if r.bytesDone > r.plan.BytesTotal {
		r.bytesDone = r.plan.BytesTotal
	}
	r.emit(false)
}

func (r *run) runItem(item *PlanItem) {
	if r.plan.Type == model.OperationDelete {
		r.runSteps(item)
		return
	}

	if len(item.Steps) == 0 {
		return
	}

	target := item.Target
	if err := r.executor.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		r.failAll(item.Steps, err)
		return
	}

	staged := ""
	exists, err := storage.Exists(r.executor.fs, target)
	if err != nil {
		r.failAll(item.Steps, err)
		return
	}

	if exists {
		action, err := r.decide(item)
		if err != nil {
			if r.stopped() {
				r.settle(item.Steps, model.StepCancelled)
				return
			}
			r.failAll(item.Steps, err)
			return
		}

		switch action {
		case model.ConflictSkip:
			r.log.Info("collision skipped", "source", item.Source, "target", target)
			r.settle(item.Steps, model.StepSkipped)
			return
		case model.ConflictCancel:
			r.cancelled = true
			r.settle(item.Steps, model.StepCancelled)
			return
		case model.ConflictRename:
			renamed, err := UniqueName(r.executor.fs, target, item.IsDir())
			if err != nil {
				r.failAll(item.Steps, err)
				return
			}
			target = renamed
			item.rebase(target)
		case model.ConflictReplace:
			if err := checkReplaceAllowed(target, item.Source); err != nil {
				r.failAll(item.Steps, err)
				return
			}
			staged = stagingPath(target, r.operationID)
			item.rebase(staged)
		default:
			r.failAll(item.Steps, &model.ConflictError{StepID: item.Steps[0].ID, Path: target, Reason: fmt.Sprintf("unsupported decision %q", action)})
			return
		}
	}

	ok := r.runSteps(item)
	if staged == "" {
		if ok || r.plan.Type == model.OperationCopy {
			r.result.Destinations = append(r.result.Destinations, target)
		}
		return
	}

	if !ok {
		// The existing entry is untouched; drop the partial replacement.
		r.discardStaged(item, staged)
		return
	}

	warning, err := commitReplace(r.executor.fs, staged, target, r.operationID)
	if err != nil {
		r.revokeSuccess(item.Steps[0], err)
		r.discardStaged(item, staged)
		return
	}
	if warning != "" {
		r.warn(warning)
	}
	item.rebase(target)
	r.result.Destinations = append(r.result.Destinations, target)
}

// discardStaged removes a replacement that will not be committed. Moved
// content is put back at its source instead of being deleted.
func (r *run) discardStaged(item *PlanItem, staged string) {
	exists, err := storage.Exists(r.executor.fs, staged)
	if err != nil || !exists {
		return
	}

	if r.plan.Type != model.OperationCopy {
		if err := r.executor.fs.Rename(staged, item.Source); err != nil {
			r.warn(fmt.Sprintf("moved content left at %s: %v", staged, err))
		}
		return
	}

	if err := r.executor.fs.RemoveAll(staged); err != nil {
		r.warn(fmt.Sprintf("could not remove staging path %s: %v", staged, err))
	}
}

func (r *run) decide(item *PlanItem) (model.ConflictAction, error) {
	action := model.ConflictAsk
	if r.resolver != nil {
		action = r.resolver.decide()
	}
	if action != model.ConflictAsk {
		return action, nil
	}

	request := model.ConflictRequest{
		OperationID: r.operationID,
		StepID:      item.Steps[0].ID,
		SourcePath:  item.Source,
		DestPath:    item.Target,
	}
	if r.hooks == nil {
		return "", &model.ConflictError{StepID: request.StepID, Path: item.Target, Reason: "destination exists and no decision is available"}
	}

	r.executor.metrics.Conflict()
	r.log.Info("waiting for conflict decision", "step_id", request.StepID, "target", item.Target)
	decision, err := r.hooks.AwaitDecision(r.ctx, request)
	if err != nil {
		return "", err
	}
	if r.resolver != nil {
		r.resolver.record(decision)
	}
	return decision.Action, nil
}

// runSteps executes an item's steps and reports whether all succeeded.
// Steps below a directory that failed to materialise are skipped.
func (r *run) runSteps(item *PlanItem) bool {
	var (
		failedDirs []string
		dirs       []createdDir
		allOK      = true
	)

	for _, step := range item.Steps {
		if r.stopped() {
			r.settle([]*PlannedStep{step}, model.StepCancelled)
			allOK = false
			continue
		}
		if dependsOnFailed(step.Rel, failedDirs) {
			r.settle([]*PlannedStep{step}, model.StepSkipped)
			allOK = false
			continue
		}

		r.current = step.Source
		err := r.execute(step)
		partial := false
		if err == nil && step.Kind == model.StepMkdir {
			dirs = append(dirs, createdDir{path: step.Destination, info: step.Info})
			if step.ScanErr != nil {
				// The directory exists but not all of its entries could be planned.
				err, partial = step.ScanErr, true
			}
		}
		switch {
		case err == nil:
			step.Outcome = model.StepSucceeded
			r.result.Summary.Succeeded++
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			r.cancelled = true
			step.Outcome = model.StepCancelled
			r.result.Summary.Cancelled++
			allOK = false
		default:
			r.fail(step, err)
			allOK = false
			if step.Kind == model.StepMkdir && !partial {
				failedDirs = append(failedDirs, step.Rel)
			}
		}

		r.itemsDone++
		r.emit(false)
	}

	r.executor.transfer.finishDirs(dirs)
	return allOK
}

func (r *run) execute(step *PlannedStep) error {
	e := r.executor
	if step.ScanErr != nil && step.Kind != model.StepMkdir {
		return step.ScanErr
	}

	switch step.Kind {
	case model.StepMkdir:
		return e.transfer.mkdir(step.Destination, step.Info)
	case model.StepCopyFile:
		return e.transfer.copyFile(r.ctx, step.Source, step.Destination, step.Info, false, r.addBytes)
	case model.StepCopySymlink:
		return e.transfer.copySymlink(step.Source, step.Destination)
	case model.StepMove, model.StepRename:
		before := r.bytesDone
		fallback, err := e.transfer.moveEntry(r.ctx, step.Source, step.Destination, r.addBytes)
		if fallback {
			step.Fallback = true
			e.metrics.Fallback()
			r.log.Debug("cross-device move fell back to copy", "step_id", step.ID, "source", step.Source, "destination", step.Destination)
		}
		if err == nil {
			r.addBytes(step.Size - (r.bytesDone - before))
		}
		return err
	case model.StepRemoveFile, model.StepRemoveDir:
		return e.fs.Remove(step.Source)
	case model.StepTrash:
		if e.trash == nil {
			return &model.TrashError{Op: "trash", Path: step.Source, Err: errors.New("trash is not configured")}
		}
		entry, err := e.trash.Trash(r.ctx, step.Source)
		if err != nil {
			return err
		}
		step.Destination = entry.TrashedPath
		r.result.Destinations = append(r.result.Destinations, entry.TrashedPath)
		if !entry.MetadataWritten {
			r.warn(fmt.Sprintf("trashed %s without metadata, restore unavailable: %s", step.Source, entry.MetadataError))
		}
		return nil
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func dependsOnFailed(rel string, failedDirs []string) bool {
	for _, dir := range failedDirs {
		if dir == "" || strings.HasPrefix(rel, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (r *run) fail(step *PlannedStep, err error) {
	kind := storage.ClassifyError(err)
	step.Outcome = model.StepFailed
	step.Error = err.Error()
	r.result.Summary.Failed++
	r.result.Failures = append(r.result.Failures, model.StepFailure{
		StepID:      step.ID,
		Kind:        kind,
		Source:      step.Source,
		Destination: step.Destination,
		Reason:      err.Error(),
	})
	r.executor.metrics.StepFailed(string(kind))
	r.log.Warn("step failed", "step_id", step.ID, "kind", kind, "path", step.Source, "error", err)
}

func (r *run) failAll(steps []*PlannedStep, err error) {
	if len(steps) == 0 {
		return
	}
	r.fail(steps[0], err)
	r.itemsDone++
	r.settle(steps[1:], model.StepSkipped)
}

// revokeSuccess turns a succeeded step into a failure when its result could
// not be committed.
func (r *run) revokeSuccess(step *PlannedStep, err error) {
	if step.Outcome == model.StepSucceeded {
		r.result.Summary.Succeeded--
	}
	r.fail(step, err)
}

func (r *run) settle(steps []*PlannedStep, outcome model.StepOutcome) {
	for _, step := range steps {
		step.Outcome = outcome
		switch outcome {
		case model.StepSkipped:
			r.result.Summary.Skipped++
		case model.StepCancelled:
			r.result.Summary.Cancelled++
		}
		r.itemsDone++
	}
}

func (r *run) warn(message string) {
	r.result.Warnings = append(r.result.Warnings, message)
	r.log.Warn(message)
}

func (r *run) finish() ExecutionResult {
	switch {
	case r.cancelled:
		r.result.Status = model.StatusCancelled
	case r.result.Summary.Failed > 0:
		r.result.Status = model.StatusFailed
	default:
		r.result.Status = model.StatusSucceeded
	}

	for _, step := range r.plan.Steps() {
		r.result.Steps = append(r.result.Steps, step.Step)
	}
	r.result.BytesDone = r.bytesDone
	r.result.ItemsDone = r.itemsDone
	return r.result
}

// rebase points every step of the item at a new root.
func (i *PlanItem) rebase(root string) {
	for _, step := range i.Steps {
		if step.Rel == "" {
			step.Destination = root
			continue
		}
		step.Destination = filepath.Join(root, step.Rel)
	}
}
