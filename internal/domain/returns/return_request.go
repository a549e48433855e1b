package returns

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Status is the return request state
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusRefunding Status = "REFUNDING"
	StatusCompleted Status = "COMPLETED"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected, StatusRefunding, StatusCompleted:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

var returnTransitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusRefunding},
	StatusRefunding: {StatusCompleted},
	StatusRejected:  {},
	StatusCompleted: {},
}

// CanTransitionTo checks whether the transition is on the adjacency list
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted
func (s Status) IsTerminal() bool {
	return len(returnTransitions[s]) == 0
}

// ItemCondition describes the state of a returned item
type ItemCondition string

const (
	ConditionUnopened ItemCondition = "UNOPENED"
	ConditionOpened   ItemCondition = "OPENED"
	ConditionDamaged  ItemCondition = "DAMAGED"
)

// IsValid checks if the condition is a known value
func (c ItemCondition) IsValid() bool {
	return c == ConditionUnopened || c == ConditionOpened || c == ConditionDamaged
}

// ReturnRequest is a post-delivery claim against order items
type ReturnRequest struct {
	shared.BaseAggregateRoot
	ReturnNumber string            `gorm:"size:32;not null;uniqueIndex" json:"return_number"`
	OrderID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	UserID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Status       Status            `gorm:"size:20;not null;default:'REQUESTED';index" json:"status"`
	Reason       string            `gorm:"size:100;not null" json:"reason"`
	Description  string            `gorm:"size:1000" json:"description"`
	Claims       []ReturnClaim     `gorm:"foreignKey:ReturnRequestID" json:"claims"`
	RefundAmount valueobject.Money `gorm:"type:decimal(12,0)" json:"refund_amount"`
	RefundMethod string            `gorm:"size:30" json:"refund_method"`
	DecidedAt    *time.Time        `gorm:"" json:"decided_at"`
	CompletedAt  *time.Time        `gorm:"" json:"completed_at"`
}

// ReturnClaim is one claimed (order item, quantity, condition) triple
type ReturnClaim struct {
	shared.BaseEntity
	ReturnRequestID uuid.UUID     `gorm:"type:uuid;not null;index" json:"return_request_id"`
	OrderItemID     uuid.UUID     `gorm:"type:uuid;not null" json:"order_item_id"`
	Quantity        int           `gorm:"not null" json:"quantity"`
	Condition       ItemCondition `gorm:"size:20;not null" json:"condition"`
}

// TableName returns the table name
func (ReturnRequest) TableName() string {
	return "return_requests"
}

// TableName returns the table name
func (ReturnClaim) TableName() string {
	return "return_claims"
}

// NewReturnRequest creates a return request with its claims
func NewReturnRequest(returnNumber string, orderID, userID uuid.UUID, reason, description string, claims []ReturnClaim) (*ReturnRequest, error) {
	if returnNumber == "" {
		return nil, shared.NewDomainError("INVALID_RETURN_NUMBER", "return number cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "order id cannot be empty")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "return reason cannot be empty")
	}
	if len(claims) == 0 {
		return nil, shared.NewDomainError("EMPTY_CLAIMS", "return request must claim at least one item")
	}
	r := &ReturnRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReturnNumber:      returnNumber,
		OrderID:           orderID,
		UserID:            userID,
		Status:            StatusRequested,
		Reason:            reason,
		Description:       description,
		RefundAmount:      valueobject.ZeroJPY(),
	}
	for _, c := range claims {
		if c.OrderItemID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_CLAIM", "claim must reference an order item")
		}
		if c.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_CLAIM", "claimed quantity must be positive")
		}
		if !c.Condition.IsValid() {
			return nil, shared.NewDomainError("INVALID_CLAIM", "unknown item condition: "+string(c.Condition))
		}
		c.BaseEntity = shared.NewBaseEntity()
		c.ReturnRequestID = r.ID
		r.Claims = append(r.Claims, c)
	}
	return r, nil
}

// ClaimedQuantity returns the quantity claimed for an order item
func (r *ReturnRequest) ClaimedQuantity(orderItemID uuid.UUID) int {
	total := 0
	for _, c := range r.Claims {
		if c.OrderItemID == orderItemID {
			total += c.Quantity
		}
	}
	return total
}

// CountsAgainstReturnable reports whether this request's claims reduce
// the remaining returnable quantity of the order's items
func (r *ReturnRequest) CountsAgainstReturnable() bool {
	return r.Status != StatusRejected
}

// Approve accepts the request and locks the refund terms
func (r *ReturnRequest) Approve(refundAmount valueobject.Money, refundMethod string) error {
	if r.Status != StatusRequested {
		return fmt.Errorf("%w: return in status %s cannot be approved", shared.ErrInvalidTransition, r.Status)
	}
	if refundAmount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "refund amount cannot be negative")
	}
	r.RefundAmount = refundAmount
	r.RefundMethod = refundMethod
	now := time.Now()
	r.DecidedAt = &now
	r.Status = StatusApproved
	return nil
}

// Reject declines the request
func (r *ReturnRequest) Reject(note string) error {
	if r.Status != StatusRequested {
		return fmt.Errorf("%w: return in status %s cannot be rejected", shared.ErrInvalidTransition, r.Status)
	}
	if note != "" {
		r.Description = r.Description + "\nrejected: " + note
	}
	now := time.Now()
	r.DecidedAt = &now
	r.Status = StatusRejected
	return nil
}

// BeginRefund marks the refund as in flight with the payment gateway
func (r *ReturnRequest) BeginRefund() error {
	if !r.Status.CanTransitionTo(StatusRefunding) {
		return fmt.Errorf("%w: return in status %s cannot start refunding", shared.ErrInvalidTransition, r.Status)
	}
	r.Status = StatusRefunding
	return nil
}

// Complete closes the request after the refund settled
func (r *ReturnRequest) Complete() error {
	if !r.Status.CanTransitionTo(StatusCompleted) {
		return fmt.Errorf("%w: return in status %s cannot complete", shared.ErrInvalidTransition, r.Status)
	}
	now := time.Now()
	r.CompletedAt = &now
	r.Status = StatusCompleted
	return nil
}
