package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	err      error
	panics   bool
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler blew up")
	}
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func newEvent(eventType string) shared.DomainEvent {
	e := shared.NewBaseDomainEvent(eventType, "order", uuid.New())
	return &e
}

func TestInMemoryEventBus(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers events to matching handlers only", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		orderHandler := &recordingHandler{types: []string{"order.submitted"}}
		paymentHandler := &recordingHandler{types: []string{"payment.completed"}}
		bus.Subscribe(orderHandler)
		bus.Subscribe(paymentHandler)

		require.NoError(t, bus.Publish(ctx, newEvent("order.submitted")))

		assert.Len(t, orderHandler.received, 1)
		assert.Empty(t, paymentHandler.received)
	})

	t.Run("wildcard handler receives every event", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		audit := &recordingHandler{}
		bus.Subscribe(audit)

		require.NoError(t, bus.Publish(ctx, newEvent("order.submitted"), newEvent("payment.completed")))

		assert.Len(t, audit.received, 2)
	})

	t.Run("failing handler does not block others", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		broken := &recordingHandler{types: []string{"order.submitted"}, err: errors.New("boom")}
		healthy := &recordingHandler{types: []string{"order.submitted"}}
		bus.Subscribe(broken)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newEvent("order.submitted")))

		assert.Len(t, healthy.received, 1)
	})

	t.Run("panicking handler is recovered", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		bus.Subscribe(&recordingHandler{types: []string{"order.submitted"}, panics: true})
		healthy := &recordingHandler{types: []string{"order.submitted"}}
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newEvent("order.submitted")))
		assert.Len(t, healthy.received, 1)
	})

	t.Run("unsubscribed handler stops receiving", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{"order.submitted"}}
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(ctx, newEvent("order.submitted")))
		assert.Empty(t, h.received)
	})

	t.Run("explicit subscription types override handler types", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{"order.submitted"}}
		bus.Subscribe(h, "shipment.delivered")

		require.NoError(t, bus.Publish(ctx, newEvent("order.submitted")))
		assert.Empty(t, h.received)

		require.NoError(t, bus.Publish(ctx, newEvent("shipment.delivered")))
		assert.Len(t, h.received, 1)
	})
}
