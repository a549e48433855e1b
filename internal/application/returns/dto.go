package returns

import (
	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/returns"
)

// ClaimRequest is one claimed item of a return submission
type ClaimRequest struct {
	OrderItemID uuid.UUID             `json:"order_item_id" validate:"required"`
	Quantity    int                   `json:"quantity" validate:"required,gt=0"`
	Condition   returns.ItemCondition `json:"condition" validate:"required"`
}

// SubmitReturnRequest files a post-delivery return against order items
type SubmitReturnRequest struct {
	OrderID     uuid.UUID      `json:"order_id" validate:"required"`
	UserID      uuid.UUID      `json:"user_id" validate:"required"`
	Reason      string         `json:"reason" validate:"required,max=100"`
	Description string         `json:"description" validate:"max=1000"`
	Claims      []ClaimRequest `json:"claims" validate:"required,min=1,dive"`
}

// Decision is the staff verdict on a return request
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ProcessReturnRequest decides a pending return request
type ProcessReturnRequest struct {
	ReturnID     uuid.UUID `json:"return_id" validate:"required"`
	Decision     Decision  `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	RefundAmount *int64    `json:"refund_amount" validate:"omitempty,gt=0"`
	RefundMethod string    `json:"refund_method" validate:"max=30"`
	Notes        string    `json:"notes" validate:"max=500"`
}
