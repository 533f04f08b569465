// Package eventbus provides the in-process pub/sub used to fan out entity
// changes and probe outcomes to interested components (monitor, logging).
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"service-ninja/internal/domain"
)

// subscriber is one registered handler. An empty eventType matches every event.
type subscriber struct {
	id        uint64
	eventType domain.EventType
	handler   domain.EventHandler
}

// Bus is a goroutine-safe in-process event bus implementing domain.EventBus.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID atomic.Uint64
	logger *slog.Logger
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// NewEvent builds an event envelope, stamping the current time and marshaling
// payload. A payload that fails to marshal is dropped from the envelope.
func NewEvent(eventType domain.EventType, payload any) domain.Event {
	event := domain.Event{Type: eventType, Timestamp: time.Now().UTC()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			event.Payload = data
		}
	}
	return event
}

// Publish fans out an event to matching subscribers. Each handler runs in its
// own goroutine; a panicking handler is recovered and logged, never propagated.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	matched := make([]subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.eventType == "" || sub.eventType == event.Type {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		b.wg.Add(1)
		go func(sub subscriber) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						"event", string(event.Type),
						"panic", r,
					)
				}
			}()
			sub.handler(ctx, event)
		}(sub)
	}
}

// Subscribe registers a handler for one event type and returns its
// unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.add(subscriber{id: b.nextID.Add(1), eventType: eventType, handler: handler})
}

// SubscribeAll registers a handler for every event and returns its
// unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.add(subscriber{id: b.nextID.Add(1), handler: handler})
}

func (b *Bus) add(sub subscriber) func() {
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Close prevents new publishes and waits for in-flight handlers to finish.
// Idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}
