package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/crossfolio/internal/events"
)

func TestEventsStreamUnsubscribesOnDisconnect(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.RefreshCompleted) == 1
	}, time.Second, 5*time.Millisecond, "stream never subscribed")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not return after disconnect")
	}

	// No subscription may outlive its connection
	for _, eventType := range streamEventTypes {
		assert.Zero(t, bus.SubscriberCount(eventType), string(eventType))
	}
	assert.Contains(t, rec.Body.String(), "connected")
}

func TestEventsStreamFilteredUnsubscribe(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events/stream?types=REFRESH_COMPLETED", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.RefreshCompleted) == 1
	}, time.Second, 5*time.Millisecond, "stream never subscribed")
	assert.Zero(t, bus.SubscriberCount(events.RefreshFailed))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not return after disconnect")
	}

	assert.Zero(t, bus.SubscriberCount(events.RefreshCompleted))
}
