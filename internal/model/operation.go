package model

import "time"

type OperationType string

const (
	OperationCopy   OperationType = "copy"
	OperationMove   OperationType = "move"
	OperationDelete OperationType = "delete"
	OperationRename OperationType = "rename"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationCopy, OperationMove, OperationDelete, OperationRename:
		return true
	}
	return false
}

type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusRunning   OperationStatus = "running"
	StatusSucceeded OperationStatus = "succeeded"
	StatusFailed    OperationStatus = "failed"
	StatusCancelled OperationStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s OperationStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// OperationRequest is what collaborators submit. Destination is a directory
// (or new path) for copy/move and a new base name for rename; it is ignored
// for delete.
type OperationRequest struct {
	Type        OperationType  `json:"type"`
	Sources     []string       `json:"sources"`
	Destination string         `json:"destination,omitempty"`
	Conflict    ConflictAction `json:"conflict_policy,omitempty"`
	Permanent   bool           `json:"permanent,omitempty"`
}

// Operation is an immutable snapshot of one submitted bulk action.
type Operation struct {
	ID              string           `json:"id"`
	Type            OperationType    `json:"type"`
	Sources         []string         `json:"sources"`
	Destination     string           `json:"destination,omitempty"`
	Conflict        ConflictAction   `json:"conflict_policy"`
	Permanent       bool             `json:"permanent,omitempty"`
	Status          OperationStatus  `json:"status"`
	BytesTotal      int64            `json:"bytes_total"`
	BytesDone       int64            `json:"bytes_done"`
	ItemsTotal      int              `json:"items_total"`
	ItemsDone       int              `json:"items_done"`
	CurrentPath     string           `json:"current_path,omitempty"`
	PendingConflict *ConflictRequest `json:"pending_conflict,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	Summary         StepSummary      `json:"summary"`
	Failures        []StepFailure    `json:"failures,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
	Destinations    []string         `json:"destinations,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (o Operation) Clone() Operation {
	cloned := o
	cloned.Sources = append([]string(nil), o.Sources...)
	cloned.Failures = append([]StepFailure(nil), o.Failures...)
	cloned.Warnings = append([]string(nil), o.Warnings...)
	cloned.Destinations = append([]string(nil), o.Destinations...)
	if o.PendingConflict != nil {
		pending := *o.PendingConflict
		cloned.PendingConflict = &pending
	}
	if o.StartedAt != nil {
		started := *o.StartedAt
		cloned.StartedAt = &started
	}
	if o.FinishedAt != nil {
		finished := *o.FinishedAt
		cloned.FinishedAt = &finished
	}
	return cloned
}

type StepKind string

const (
	StepMkdir       StepKind = "mkdir"
	StepCopyFile    StepKind = "copy_file"
	StepCopySymlink StepKind = "copy_symlink"
	StepMove        StepKind = "move"
	StepRename      StepKind = "rename"
	StepRemoveFile  StepKind = "remove_file"
	StepRemoveDir   StepKind = "remove_dir"
	StepTrash       StepKind = "trash"
	StepCommit      StepKind = "commit_replace"
)

type StepOutcome string

const (
	StepPending   StepOutcome = "pending"
	StepSucceeded StepOutcome = "succeeded"
	StepFailed    StepOutcome = "failed"
	StepSkipped   StepOutcome = "skipped"
	StepCancelled StepOutcome = "cancelled"
)

// Step is the smallest unit of work: one file or directory entry transferred
// or removed.
type Step struct {
	ID          int         `json:"id"`
	Kind        StepKind    `json:"kind"`
	Source      string      `json:"source,omitempty"`
	Destination string      `json:"destination,omitempty"`
	Size        int64       `json:"size"`
	Mode        uint32      `json:"mode,omitempty"`
	Outcome     StepOutcome `json:"outcome"`
	Fallback    bool        `json:"fallback,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type StepSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

type StepFailure struct {
	StepID      int           `json:"step_id"`
	Kind        StepErrorKind `json:"kind"`
	Source      string        `json:"source,omitempty"`
	Destination string        `json:"destination,omitempty"`
	Reason      string        `json:"reason"`
}

type ConflictAction string

const (
	ConflictAsk     ConflictAction = "ask"
	ConflictReplace ConflictAction = "replace"
	ConflictSkip    ConflictAction = "skip"
	ConflictRename  ConflictAction = "rename"
	ConflictCancel  ConflictAction = "cancel"
)

type ConflictScope string

const (
	ScopeThisItem   ConflictScope = "this_item"
	ScopeApplyToAll ConflictScope = "apply_to_all"
)

type ConflictDecision struct {
	Action ConflictAction `json:"action"`
	Scope  ConflictScope  `json:"scope,omitempty"`
}

// ConflictRequest describes a step suspended until a decision arrives.
type ConflictRequest struct {
	OperationID string `json:"operation_id"`
	StepID      int    `json:"step_id"`
	SourcePath  string `json:"source_path"`
	DestPath    string `json:"dest_path"`
}
