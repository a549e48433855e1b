package payment

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
)

// Event types published by the payment aggregate
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

const aggregateTypePayment = "PaymentTransaction"

// PaymentCompletedEvent fires when a gateway confirms the payment
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	TransactionNumber string    `json:"transaction_number"`
	OrderID           uuid.UUID `json:"order_id"`
	Amount            int64     `json:"amount"`
	Method            Method    `json:"method"`
}

// NewPaymentCompletedEvent creates the event
func NewPaymentCompletedEvent(t *Transaction) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventPaymentCompleted, aggregateTypePayment, t.ID),
		TransactionNumber: t.TransactionNumber,
		OrderID:           t.OrderID,
		Amount:            t.Amount.IntPart(),
		Method:            t.Method,
	}
}

// PaymentFailedEvent fires when an attempt fails or expires
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	TransactionNumber string    `json:"transaction_number"`
	OrderID           uuid.UUID `json:"order_id"`
	Method            Method    `json:"method"`
	Reason            string    `json:"reason"`
}

// NewPaymentFailedEvent creates the event
func NewPaymentFailedEvent(t *Transaction, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventPaymentFailed, aggregateTypePayment, t.ID),
		TransactionNumber: t.TransactionNumber,
		OrderID:           t.OrderID,
		Method:            t.Method,
		Reason:            reason,
	}
}

// PaymentRefundedEvent fires when a refund settles
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	TransactionNumber string    `json:"transaction_number"`
	OrderID           uuid.UUID `json:"order_id"`
	Method            Method    `json:"method"`
	RefundedAmount    int64     `json:"refunded_amount"`
	FullyRefunded     bool      `json:"fully_refunded"`
}

// NewPaymentRefundedEvent creates the event
func NewPaymentRefundedEvent(t *Transaction) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventPaymentRefunded, aggregateTypePayment, t.ID),
		TransactionNumber: t.TransactionNumber,
		OrderID:           t.OrderID,
		Method:            t.Method,
		RefundedAmount:    t.RefundedAmount.IntPart(),
		FullyRefunded:     t.Status == StatusRefunded,
	}
}
