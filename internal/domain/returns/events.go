package returns

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
)

// Event types published by the return aggregate
const (
	EventReturnRequested = "return.requested"
	EventReturnProcessed = "return.processed"
)

const aggregateTypeReturn = "ReturnRequest"

// ReturnRequestedEvent fires when a customer submits a return
type ReturnRequestedEvent struct {
	shared.BaseDomainEvent
	ReturnNumber string    `json:"return_number"`
	OrderID      uuid.UUID `json:"order_id"`
	Reason       string    `json:"reason"`
}

// NewReturnRequestedEvent creates the event
func NewReturnRequestedEvent(r *ReturnRequest) *ReturnRequestedEvent {
	return &ReturnRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReturnRequested, aggregateTypeReturn, r.ID),
		ReturnNumber:    r.ReturnNumber,
		OrderID:         r.OrderID,
		Reason:          r.Reason,
	}
}

// ReturnProcessedEvent fires when a return reaches a decision or
// completes; the notification collaborator tells the customer
type ReturnProcessedEvent struct {
	shared.BaseDomainEvent
	ReturnNumber string    `json:"return_number"`
	OrderID      uuid.UUID `json:"order_id"`
	Status       Status    `json:"status"`
	RefundAmount int64     `json:"refund_amount"`
}

// NewReturnProcessedEvent creates the event
func NewReturnProcessedEvent(r *ReturnRequest) *ReturnProcessedEvent {
	return &ReturnProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReturnProcessed, aggregateTypeReturn, r.ID),
		ReturnNumber:    r.ReturnNumber,
		OrderID:         r.OrderID,
		Status:          r.Status,
		RefundAmount:    r.RefundAmount.IntPart(),
	}
}
