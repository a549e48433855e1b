package payment

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/payment"
)

// CreatePaymentRequest opens a payment attempt for an order
type CreatePaymentRequest struct {
	OrderID   uuid.UUID      `json:"order_id" validate:"required"`
	Method    payment.Method `json:"method" validate:"required"`
	ReturnURL string         `json:"return_url" validate:"omitempty,url"`
}

// CreatePaymentResponse carries the customer-facing instruction
type CreatePaymentResponse struct {
	TransactionID     uuid.UUID            `json:"transaction_id"`
	TransactionNumber string               `json:"transaction_number"`
	Instruction       *payment.Instruction `json:"instruction"`
}

// RefundRequest returns funds for a completed transaction
type RefundRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	Reason        string    `json:"reason" validate:"required,max=500"`
}
