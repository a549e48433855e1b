package telemetry

import (
	"context"

	"github.com/komono/backend/internal/domain/order"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/returns"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shipping"
)

// MetricsEventHandler records business metrics from domain events so
// application services stay free of instrumentation concerns. It is
// registered on the in-process event bus at startup.
type MetricsEventHandler struct {
	metrics *BusinessMetrics
}

var _ shared.EventHandler = (*MetricsEventHandler)(nil)

// NewMetricsEventHandler creates the handler
func NewMetricsEventHandler(metrics *BusinessMetrics) *MetricsEventHandler {
	return &MetricsEventHandler{metrics: metrics}
}

// EventTypes returns the event types the handler consumes
func (h *MetricsEventHandler) EventTypes() []string {
	return []string{
		order.EventOrderCreated,
		order.EventOrderCancelled,
		payment.EventPaymentCompleted,
		payment.EventPaymentFailed,
		payment.EventPaymentRefunded,
		shipping.EventShipmentRegistered,
		returns.EventReturnRequested,
	}
}

// Handle maps a domain event onto its metric. Unknown events are
// ignored so new publishers never break the handler.
func (h *MetricsEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *order.OrderCreatedEvent:
		h.metrics.RecordOrderPlaced(ctx, e.PaymentMethod, e.GrandTotal)
	case *order.OrderCancelledEvent:
		h.metrics.RecordOrderCancelled(ctx, string(e.FromStatus))
	case *payment.PaymentCompletedEvent:
		h.metrics.RecordPayment(ctx, string(e.Method), PaymentOutcomeCompleted)
	case *payment.PaymentFailedEvent:
		outcome := PaymentOutcomeFailed
		if e.Reason == "expired" {
			outcome = PaymentOutcomeExpired
		}
		h.metrics.RecordPayment(ctx, string(e.Method), outcome)
	case *payment.PaymentRefundedEvent:
		h.metrics.RecordRefund(ctx, string(e.Method))
	case *shipping.ShipmentRegisteredEvent:
		h.metrics.RecordShipmentRegistered(ctx, e.CarrierName, string(e.ServiceType))
	case *returns.ReturnRequestedEvent:
		h.metrics.RecordReturnRequest(ctx, e.Reason)
	}
	return nil
}
