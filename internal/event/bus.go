package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	subscriberBuffer = 100
	deliveryTimeout  = 250 * time.Millisecond
)

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	wait        time.Duration
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string]chan Event),
		wait:        deliveryTimeout,
	}
}

// Publish never blocks on progress events. Every other event waits a bounded
// time per subscriber before it is dropped and logged.
func (b *InMemoryBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- e:
			continue
		default:
		}

		if e.Type.Droppable() {
			continue
		}

		timer := time.NewTimer(b.wait)
		select {
		case ch <- e:
		case <-timer.C:
			slog.Warn("event dropped for slow subscriber", "subscriber", id, "type", e.Type, "event_id", e.ID)
		}
		timer.Stop()
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if ch, exists := b.subscribers[id]; exists {
				close(ch)
				delete(b.subscribers, id)
			}
		})
	}

	return ch, unsubscribe
}
