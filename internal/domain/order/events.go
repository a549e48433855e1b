package order

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
)

// Event types published by the order aggregate. The notification
// collaborator consumes the customer-facing ones; delivery failures
// never roll back a transition.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
	EventOrderShipped   = "order.shipped"
	EventOrderDelivered = "order.delivered"
)

const aggregateTypeOrder = "Order"

// OrderCreatedEvent fires when a draft becomes a pending order
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderNumber   string    `json:"order_number"`
	UserID        uuid.UUID `json:"user_id"`
	GrandTotal    int64     `json:"grand_total"`
	ItemCount     int       `json:"item_count"`
	PaymentMethod string    `json:"payment_method"`
}

// NewOrderCreatedEvent creates the event from a submitted order
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderCreated, aggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		GrandTotal:      o.GrandTotal.IntPart(),
		ItemCount:       len(o.Items),
		PaymentMethod:   o.PaymentMethod,
	}
}

// OrderConfirmedEvent fires when payment completion confirms the order
type OrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderNumber string `json:"order_number"`
}

// NewOrderConfirmedEvent creates the event
func NewOrderConfirmedEvent(o *Order) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderConfirmed, aggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
	}
}

// OrderCancelledEvent fires on cancellation
type OrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderNumber string      `json:"order_number"`
	FromStatus  OrderStatus `json:"from_status"`
	Reason      string      `json:"reason"`
}

// NewOrderCancelledEvent creates the event
func NewOrderCancelledEvent(o *Order, fromStatus OrderStatus, reason string) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderCancelled, aggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
		FromStatus:      fromStatus,
		Reason:          reason,
	}
}

// OrderShippedEvent fires when the shipment leaves the warehouse
type OrderShippedEvent struct {
	shared.BaseDomainEvent
	OrderNumber    string `json:"order_number"`
	TrackingNumber string `json:"tracking_number"`
}

// NewOrderShippedEvent creates the event
func NewOrderShippedEvent(o *Order, trackingNumber string) *OrderShippedEvent {
	return &OrderShippedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderShipped, aggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
		TrackingNumber:  trackingNumber,
	}
}

// OrderDeliveredEvent fires on confirmed delivery
type OrderDeliveredEvent struct {
	shared.BaseDomainEvent
	OrderNumber string `json:"order_number"`
}

// NewOrderDeliveredEvent creates the event
func NewOrderDeliveredEvent(o *Order) *OrderDeliveredEvent {
	return &OrderDeliveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderDelivered, aggregateTypeOrder, o.ID),
		OrderNumber:     o.OrderNumber,
	}
}
