package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
	"go-fileops/internal/util"
)

// PlannedStep is a step plus what the executor needs to carry it out.
// Rel locates the entry below its item root. ScanErr marks an entry that
// cannot be carried out in full; the step fails when it runs.
type PlannedStep struct {
	model.Step
	Rel     string
	Info    fs.FileInfo
	ScanErr error
}

// PlanItem is one requested source and the steps that realise it.
type PlanItem struct {
	Source    string
	Target    string
	Info      fs.FileInfo
	NoOp      bool
	Collision bool
	Steps     []*PlannedStep
}

func (i *PlanItem) IsDir() bool {
	return i.Info != nil && i.Info.IsDir()
}

type Plan struct {
	Type       model.OperationType
	Permanent  bool
	Items      []*PlanItem
	BytesTotal int64
	StepsTotal int
	Warnings   []string
}

// Steps returns every step in execution order.
func (p *Plan) Steps() []*PlannedStep {
	steps := make([]*PlannedStep, 0, p.StepsTotal)
	for _, item := range p.Items {
		steps = append(steps, item.Steps...)
	}
	return steps
}

// PlanProgress reports scan progress as entries and bytes discovered so far.
type PlanProgress func(items int, bytes int64)

type Planner struct {
	fs        storage.FS
	scanner   *Scanner
	validator *storage.PathValidator
}

func NewPlanner(fsys storage.FS, scanner *Scanner, validator *storage.PathValidator) *Planner {
	return &Planner{fs: fsys, scanner: scanner, validator: validator}
}

func (p *Planner) Plan(ctx context.Context, request model.OperationRequest, progress PlanProgress) (*Plan, error) {
	if progress == nil {
		progress = func(int, int64) {}
	}

	sources, err := p.validateSources(request.Sources)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Type: request.Type, Permanent: request.Permanent}
	b := &planBuilder{planner: p, plan: plan, ctx: ctx, progress: progress}

	switch request.Type {
	case model.OperationCopy, model.OperationMove:
		if err := b.transfer(sources, request.Destination); err != nil {
			return nil, err
		}
	case model.OperationRename:
		if err := b.rename(sources, request.Destination); err != nil {
			return nil, err
		}
	case model.OperationDelete:
		if err := b.delete(sources, request.Permanent); err != nil {
			return nil, err
		}
	default:
		return nil, &model.PlanningError{Reason: fmt.Sprintf("unknown operation type %q", request.Type)}
	}

	return plan, nil
}

func (p *Planner) validateSources(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, &model.PlanningError{Reason: "no sources given"}
	}

	seen := make(map[string]struct{}, len(raw))
	sources := make([]string, 0, len(raw))
	for _, source := range raw {
		cleaned, err := p.validator.Validate(source)
		if err != nil {
			return nil, &model.PlanningError{Path: source, Reason: "invalid source path", Err: err}
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		sources = append(sources, cleaned)
	}

	return sources, nil
}

type planBuilder struct {
	planner  *Planner
	plan     *Plan
	ctx      context.Context
	progress PlanProgress
	scanned  int
	nextID   int
}

func (b *planBuilder) addStep(item *PlanItem, kind model.StepKind, source string, destination string, rel string, info fs.FileInfo) *PlannedStep {
	b.nextID++
	step := &PlannedStep{
		Step: model.Step{
			ID:          b.nextID,
			Kind:        kind,
			Source:      source,
			Destination: destination,
			Outcome:     model.StepPending,
		},
		Rel:  rel,
		Info: info,
	}
	if info != nil {
		step.Mode = uint32(info.Mode())
		if kind == model.StepCopyFile || kind == model.StepMove {
			step.Size = info.Size()
		}
	}

	item.Steps = append(item.Steps, step)
	b.plan.StepsTotal++
	b.plan.BytesTotal += step.Size
	return step
}

func (b *planBuilder) statSource(source string, transfer bool) (fs.FileInfo, error) {
	info, err := b.planner.fs.Lstat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.PlanningError{Path: source, Reason: "source does not exist", Err: err}
		}
		return nil, &model.PlanningError{Path: source, Reason: "cannot stat source", Err: err}
	}

	if transfer && info.Mode()&fs.ModeSymlink != 0 {
		resolved, statErr := b.planner.fs.Stat(source)
		if statErr != nil && errors.Is(statErr, syscall.ELOOP) {
			return nil, &model.PlanningError{Path: source, Reason: "source is an unresolvable symlink loop", Err: statErr}
		}
		if statErr == nil && b.planner.scanner.FollowSymlinks() {
			return resolved, nil
		}
	}

	return info, nil
}

func (b *planBuilder) transfer(sources []string, rawDestination string) error {
	if rawDestination == "" {
		return &model.PlanningError{Reason: fmt.Sprintf("%s requires a destination", b.plan.Type)}
	}

	destination, err := b.planner.validator.Validate(rawDestination)
	if err != nil {
		return &model.PlanningError{Path: rawDestination, Reason: "invalid destination path", Err: err}
	}

	intoDirectory := storage.HasTrailingSeparator(rawDestination) || len(sources) > 1
	if !intoDirectory {
		if info, statErr := b.planner.fs.Stat(destination); statErr == nil && info.IsDir() {
			intoDirectory = true
		}
	}

	for _, source := range sources {
		info, err := b.statSource(source, true)
		if err != nil {
			return err
		}

		target := destination
		if intoDirectory {
			target = filepath.Join(destination, filepath.Base(source))
		}

		if info.IsDir() && target != source && storage.IsWithin(source, target) {
			return &model.PlanningError{Path: source, Reason: fmt.Sprintf("cannot %s a directory into itself (%s)", b.plan.Type, target)}
		}

		item := &PlanItem{Source: source, Target: target, Info: info}
		if err := b.resolveSameTarget(item); err != nil {
			return err
		}
		b.plan.Items = append(b.plan.Items, item)
		if item.NoOp {
			continue
		}

		if b.plan.Type == model.OperationMove {
			if err := b.moveSteps(item); err != nil {
				return err
			}
			continue
		}
		if err := b.copySteps(item); err != nil {
			return err
		}
	}

	return nil
}

// resolveSameTarget handles a target equal to its source: a copy becomes a
// numbered duplicate, a move or rename does nothing.
func (b *planBuilder) resolveSameTarget(item *PlanItem) error {
	if item.Target != item.Source {
		exists, err := storage.Exists(b.planner.fs, item.Target)
		if err != nil {
			return &model.PlanningError{Path: item.Target, Reason: "cannot stat destination", Err: err}
		}
		item.Collision = exists
		return nil
	}

	if b.plan.Type != model.OperationCopy {
		item.NoOp = true
		return nil
	}

	duplicate, err := UniqueName(b.planner.fs, item.Source, item.IsDir())
	if err != nil {
		return &model.PlanningError{Path: item.Source, Reason: "cannot name duplicate", Err: err}
	}
	item.Target = duplicate
	return nil
}

func (b *planBuilder) noteScanned(bytes int64) {
	b.scanned++
	b.progress(b.scanned, bytes)
}

func (b *planBuilder) copySteps(item *PlanItem) error {
	warnings, err := b.planner.scanner.Walk(b.ctx, item.Source, func(entry ScanEntry) error {
		destination := item.Target
		if entry.Rel != "" {
			destination = filepath.Join(item.Target, entry.Rel)
		}

		switch {
		case entry.IsDir():
			step := b.addStep(item, model.StepMkdir, entry.Path, destination, entry.Rel, entry.Info)
			if entry.ReadErr != nil {
				step.ScanErr = fmt.Errorf("directory not fully readable: %w", entry.ReadErr)
			}
		case entry.IsSymlink():
			b.addStep(item, model.StepCopySymlink, entry.Path, destination, entry.Rel, entry.Info)
		case entry.IsRegular():
			b.addStep(item, model.StepCopyFile, entry.Path, destination, entry.Rel, entry.Info)
		default:
			step := b.addStep(item, model.StepCopyFile, entry.Path, destination, entry.Rel, entry.Info)
			step.ScanErr = unsupportedEntry(entry.Path, entry.Info)
			b.plan.BytesTotal -= step.Size
			step.Size = 0
		}

		b.noteScanned(b.plan.BytesTotal)
		return nil
	})
	b.plan.Warnings = append(b.plan.Warnings, warnings...)
	if err != nil {
		return scanError(item.Source, err)
	}
	return nil
}

// moveSteps plans a single rename. The tree is still scanned so progress can
// be reported in bytes if the move has to fall back to copying.
func (b *planBuilder) moveSteps(item *PlanItem) error {
	var size int64
	if item.IsDir() {
		warnings, err := b.planner.scanner.Walk(b.ctx, item.Source, func(entry ScanEntry) error {
			if entry.IsRegular() {
				size += entry.Info.Size()
			}
			b.noteScanned(b.plan.BytesTotal + size)
			return nil
		})
		b.plan.Warnings = append(b.plan.Warnings, warnings...)
		if err != nil {
			return scanError(item.Source, err)
		}
	} else if item.Info.Mode().IsRegular() {
		size = item.Info.Size()
		b.noteScanned(b.plan.BytesTotal + size)
	}

	step := b.addStep(item, model.StepMove, item.Source, item.Target, "", item.Info)
	b.plan.BytesTotal += size - step.Size
	step.Size = size
	return nil
}

func (b *planBuilder) rename(sources []string, newName string) error {
	if len(sources) != 1 {
		return &model.PlanningError{Reason: "rename takes exactly one source"}
	}
	source := sources[0]

	name, err := util.ValidateFilename(newName)
	if err != nil {
		return &model.PlanningError{Path: source, Reason: fmt.Sprintf("invalid name %q", newName), Err: err}
	}

	info, err := b.statSource(source, false)
	if err != nil {
		return err
	}

	item := &PlanItem{Source: source, Target: filepath.Join(filepath.Dir(source), name), Info: info}
	if err := b.resolveSameTarget(item); err != nil {
		return err
	}
	b.plan.Items = append(b.plan.Items, item)
	if !item.NoOp {
		b.addStep(item, model.StepRename, item.Source, item.Target, "", nil)
	}
	return nil
}

func (b *planBuilder) delete(sources []string, permanent bool) error {
	for _, source := range sources {
		info, err := b.statSource(source, false)
		if err != nil {
			return err
		}

		item := &PlanItem{Source: source, Info: info}
		b.plan.Items = append(b.plan.Items, item)

		if !permanent {
			b.addStep(item, model.StepTrash, source, "", "", nil)
			b.noteScanned(0)
			continue
		}

		if err := b.removalSteps(item); err != nil {
			return err
		}
	}
	return nil
}

// removalSteps lists the tree parents first and emits it reversed so every
// entry is removed before the directory holding it.
func (b *planBuilder) removalSteps(item *PlanItem) error {
	entries := make([]ScanEntry, 0, 16)
	walker := NewScanner(b.planner.fs, false)
	warnings, err := walker.Walk(b.ctx, item.Source, func(entry ScanEntry) error {
		entries = append(entries, entry)
		b.noteScanned(0)
		return nil
	})
	b.plan.Warnings = append(b.plan.Warnings, warnings...)
	if err != nil {
		return scanError(item.Source, err)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		kind := model.StepRemoveFile
		if entry.IsDir() {
			kind = model.StepRemoveDir
		}
		b.addStep(item, kind, entry.Path, "", entry.Rel, entry.Info)
	}
	return nil
}

func unsupportedEntry(path string, info fs.FileInfo) error {
	return &model.StepError{
		Path: path,
		Kind: model.StepErrIO,
		Err:  fmt.Errorf("unsupported file type %s", info.Mode().Type()),
	}
}

func scanError(source string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, syscall.ELOOP) {
		return &model.PlanningError{Path: source, Reason: "source is an unresolvable symlink loop", Err: err}
	}
	return &model.PlanningError{Path: source, Reason: "cannot scan source", Err: err}
}
