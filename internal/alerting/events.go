package alerting

import (
	"sync"
	"time"

	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

// EventBus fans lifecycle events out to subscribers over bounded channels.
// Publish never blocks: a subscriber that falls behind loses events rather
// than stalling the pipeline.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[int]chan models.LifecycleEvent
	nextID  int
	bufSize int
	closed  bool
	logger  logger.Logger
}

func NewEventBus(bufSize int, log logger.Logger) *EventBus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &EventBus{
		subs:    make(map[int]chan models.LifecycleEvent),
		bufSize: bufSize,
		logger:  log,
	}
}

// Subscribe registers a consumer. The returned cancel func must be called to
// release the subscription; the channel is closed by cancel or bus Close.
func (b *EventBus) Subscribe() (<-chan models.LifecycleEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan models.LifecycleEvent)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan models.LifecycleEvent, b.bufSize)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping on full buffers.
func (b *EventBus) Publish(eventType, alertID string, payload interface{}) {
	event := models.LifecycleEvent{
		Type:      eventType,
		AlertID:   alertID,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Lifecycle event dropped for slow subscriber", "type", eventType, "alert", alertID)
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
