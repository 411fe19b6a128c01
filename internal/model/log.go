package model

import "time"

type LogOutcome string

const (
	OutcomeSucceeded LogOutcome = "succeeded"
	OutcomeFailed    LogOutcome = "failed"
	OutcomeCancelled LogOutcome = "cancelled"
)

// Action types beyond the operation types.
const (
	ActionRestore     = "restore"
	ActionEmptyTrash  = "empty_trash"
	ActionTrashRemove = "trash_remove"
)

// LogRecord is one line of the operation log. It is never modified once
// appended.
type LogRecord struct {
	Timestamp    time.Time  `json:"timestamp"`
	OperationID  string     `json:"operation_id,omitempty"`
	Action       string     `json:"action"`
	Sources      []string   `json:"sources"`
	Destinations []string   `json:"destinations"`
	Outcome      LogOutcome `json:"outcome"`
	ErrorDetail  string     `json:"error,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type LogFilter struct {
	Action  string
	Outcome string
	Name    string
	From    time.Time
	To      time.Time
}

type LogListData struct {
	Items []LogRecord `json:"items"`
}
