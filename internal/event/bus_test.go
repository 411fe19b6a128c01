package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
)

func TestInMemoryBusDelivers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(New(TypeOperationSubmitted, OperationPayload{OperationID: "op-1"}))

	select {
	case received := <-ch:
		require.Equal(t, TypeOperationSubmitted, received.Type)
		require.NotEmpty(t, received.ID)
		require.Equal(t, "op-1", received.Payload.(OperationPayload).OperationID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestInMemoryBusDropsProgressForSlowSubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	bus.wait = 10 * time.Millisecond
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+50; i++ {
		bus.Publish(New(TypeOperationProgress, ProgressPayload{OperationID: "op-1", BytesDone: int64(i)}))
	}
	require.Len(t, ch, subscriberBuffer)

	started := time.Now()
	bus.Publish(New(TypeOperationCompleted, CompletedPayload{OperationID: "op-1"}))
	require.GreaterOrEqual(t, time.Since(started), 10*time.Millisecond)
}

func TestInMemoryBusUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)
	bus.Publish(New(TypeLogAppended, nil))
}

func TestOperationID(t *testing.T) {
	id, ok := OperationID(New(TypeOperationProgress, ProgressPayload{OperationID: "op-1"}))
	assert.True(t, ok)
	assert.Equal(t, "op-1", id)

	id, ok = OperationID(New(TypeConflictRequested, model.ConflictRequest{OperationID: "op-2", StepID: 3}))
	assert.True(t, ok)
	assert.Equal(t, "op-2", id)

	_, ok = OperationID(New(TypeTrashEmptied, TrashPayload{Removed: 1}))
	assert.False(t, ok)

	_, ok = OperationID(New(TypeLogAppended, model.LogRecord{Action: model.ActionEmptyTrash}))
	assert.False(t, ok)
}
