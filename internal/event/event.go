package event

import (
	"time"

	"github.com/google/uuid"

	"go-fileops/internal/model"
)

type Type string

const (
	TypeOperationSubmitted Type = "operation.submitted"
	TypeOperationStarted   Type = "operation.started"
	TypeOperationProgress  Type = "operation.progress"
	TypeConflictRequested  Type = "operation.conflict_requested"
	TypeOperationCompleted Type = "operation.completed"
	TypeLogAppended        Type = "log.appended"
	TypeLogWriteFailed     Type = "log.write_failed"
	TypeTrashRestored      Type = "trash.restored"
	TypeTrashEmptied       Type = "trash.emptied"
)

// Droppable events may be discarded for slow subscribers.
func (t Type) Droppable() bool {
	return t == TypeOperationProgress
}

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // Who triggered the event
}

func New(eventType Type, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

type OperationPayload struct {
	OperationID string              `json:"operation_id"`
	Type        model.OperationType `json:"type"`
	Sources     []string            `json:"sources"`
	Destination string              `json:"destination,omitempty"`
}

type ProgressPayload struct {
	OperationID string `json:"operation_id"`
	BytesDone   int64  `json:"bytes_done"`
	BytesTotal  int64  `json:"bytes_total"`
	ItemsDone   int    `json:"items_done"`
	ItemsTotal  int    `json:"items_total"`
	CurrentPath string `json:"current_path,omitempty"`
}

type CompletedPayload struct {
	OperationID string                `json:"operation_id"`
	Status      model.OperationStatus `json:"status"`
	Summary     model.StepSummary     `json:"summary"`
	Failures    []model.StepFailure   `json:"failures,omitempty"`
	Warnings    []string              `json:"warnings,omitempty"`
	Error       string                `json:"error,omitempty"`
}

type LogFailurePayload struct {
	OperationID string `json:"operation_id,omitempty"`
	Path        string `json:"path"`
	Error       string `json:"error"`
}

type TrashPayload struct {
	Entries []model.TrashEntry   `json:"entries,omitempty"`
	Removed int                  `json:"removed,omitempty"`
	Failed  []model.TrashFailure `json:"failed,omitempty"`
}

// OperationID extracts the operation an event belongs to, if any.
func OperationID(e Event) (string, bool) {
	switch payload := e.Payload.(type) {
	case OperationPayload:
		return payload.OperationID, true
	case ProgressPayload:
		return payload.OperationID, true
	case CompletedPayload:
		return payload.OperationID, true
	case LogFailurePayload:
		return payload.OperationID, payload.OperationID != ""
	case model.ConflictRequest:
		return payload.OperationID, true
	case model.LogRecord:
		return payload.OperationID, payload.OperationID != ""
	}
	return "", false
}
