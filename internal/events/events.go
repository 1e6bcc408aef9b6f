// Package events provides the in-process event bus.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	RefreshStarted    EventType = "REFRESH_STARTED"
	RefreshCompleted  EventType = "REFRESH_COMPLETED"
	RefreshPartial    EventType = "REFRESH_PARTIAL"
	RefreshFailed     EventType = "REFRESH_FAILED"
	SnapshotPersisted EventType = "SNAPSHOT_PERSISTED"
	RatesUpdated      EventType = "RATES_UPDATED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Handler receives published events. Handlers must not block.
type Handler func(event *Event)

// subscription wraps a handler so it can be removed by identity; function
// values themselves are not comparable.
type subscription struct {
	handler Handler
}

// Bus is a synchronous publish/subscribe event bus. Subscribing is safe from
// any goroutine; handlers run on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]*subscription
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]*subscription),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type. The returned function
// removes the subscription; calling it more than once is a no-op. Long-lived
// subscribers may discard it, but per-connection subscribers must call it on
// disconnect or their handlers accumulate on the bus forever.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{handler: handler}
	b.handlers[eventType] = append(b.handlers[eventType], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[eventType]
		for i, s := range subs {
			if s == sub {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount reports the number of live subscriptions for an event type
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish delivers an event to all handlers subscribed to its type
func (b *Bus) Publish(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	subs := append([]*subscription(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Int("handlers", len(subs)).
		Msg("Event published")

	for _, sub := range subs {
		sub.handler(event)
	}
}

// PublishError publishes an error event
func (b *Bus) PublishError(module string, err error, context map[string]interface{}) {
	b.Publish(ErrorOccurred, module, map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	})
}
