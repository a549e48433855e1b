package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Transaction is one payment attempt for an order. An order may carry
// several attempts over its life (retries after failure), but at most
// one may be open at a time.
type Transaction struct {
	shared.BaseAggregateRoot
	TransactionNumber     string            `gorm:"size:40;not null;uniqueIndex" json:"transaction_number"`
	ExternalTransactionID *string           `gorm:"size:128;index" json:"external_transaction_id"`
	OrderID               uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	Method                Method            `gorm:"size:30;not null" json:"method"`
	GatewayName           string            `gorm:"size:30;not null" json:"gateway_name"`
	Status                Status            `gorm:"size:20;not null;default:'CREATED';index" json:"status"`
	Amount                valueobject.Money `gorm:"type:decimal(12,0);not null" json:"amount"`
	Fee                   valueobject.Money `gorm:"type:decimal(12,0)" json:"fee"`
	RefundedAmount        valueobject.Money `gorm:"type:decimal(12,0)" json:"refunded_amount"`
	RefundCount           int               `gorm:"not null;default:0" json:"refund_count"`
	ExpiresAt             time.Time         `gorm:"not null" json:"expires_at"`
	ProcessedAt           *time.Time        `gorm:"" json:"processed_at"`
	CompletedAt           *time.Time        `gorm:"" json:"completed_at"`
	RefundedAt            *time.Time        `gorm:"" json:"refunded_at"`
	Logs                  []TransactionLog  `gorm:"foreignKey:TransactionID" json:"logs"`
}

// TransactionLog is one entry of the append-only transition trail.
// Raw gateway payloads are kept for reconciliation and audit.
type TransactionLog struct {
	shared.BaseEntity
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index" json:"transaction_id"`
	FromStatus    Status    `gorm:"size:20;not null" json:"from_status"`
	ToStatus      Status    `gorm:"size:20;not null" json:"to_status"`
	Notes         string    `gorm:"size:500" json:"notes"`
	RawPayload    string    `gorm:"type:text" json:"raw_payload"`
}

// TableName returns the table name
func (Transaction) TableName() string {
	return "payment_transactions"
}

// TableName returns the table name
func (TransactionLog) TableName() string {
	return "payment_transaction_logs"
}

// NewTransaction creates a payment attempt for an order
func NewTransaction(transactionNumber string, orderID uuid.UUID, method Method, gatewayName string, amount valueobject.Money, expiresAt time.Time) (*Transaction, error) {
	if transactionNumber == "" {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_NUMBER", "transaction number cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "order id cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "unknown payment method: "+method.String())
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "payment amount must be positive")
	}
	return &Transaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TransactionNumber: transactionNumber,
		OrderID:           orderID,
		Method:            method,
		GatewayName:       gatewayName,
		Status:            StatusCreated,
		Amount:            amount,
		Fee:               valueobject.ZeroJPY(),
		RefundedAmount:    valueobject.ZeroJPY(),
		ExpiresAt:         expiresAt,
	}, nil
}

// Transition moves the transaction to the target status, appending a
// log entry. Rejects any pair not on the adjacency list.
func (t *Transaction) Transition(target Status, notes, rawPayload string) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "unknown payment status: "+target.String())
	}
	if !t.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: payment cannot move from %s to %s", shared.ErrInvalidTransition, t.Status, target)
	}
	t.appendLog(t.Status, target, notes, rawPayload)
	now := time.Now()
	switch target {
	case StatusProcessing:
		t.ProcessedAt = &now
	case StatusCompleted:
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	case StatusRefunded:
		t.RefundedAt = &now
	}
	t.Status = target
	return nil
}

// AttachExternalID records the gateway-assigned transaction id
func (t *Transaction) AttachExternalID(externalID string) {
	if externalID != "" {
		t.ExternalTransactionID = &externalID
	}
}

// MarkExpired sweeps a stale open attempt to Failed. No-op when the
// attempt is not past expiry or already terminal.
func (t *Transaction) MarkExpired(now time.Time) (bool, error) {
	if !t.Status.IsOpen() || now.Before(t.ExpiresAt) {
		return false, nil
	}
	if err := t.Transition(StatusFailed, "expired without completion", ""); err != nil {
		return false, err
	}
	return true, nil
}

// RemainingRefundable returns amount minus cumulative refunds
func (t *Transaction) RemainingRefundable() valueobject.Money {
	return t.Amount.MustSubtract(t.RefundedAmount)
}

// BeginRefund validates and opens a refund of the given amount.
// Only Completed transactions can refund; cumulative refunds never
// exceed the paid amount.
func (t *Transaction) BeginRefund(amount valueobject.Money, reason string) error {
	if t.Status != StatusCompleted {
		return fmt.Errorf("%w: only completed payments can be refunded, transaction is %s", shared.ErrInvalidTransition, t.Status)
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "refund amount must be positive")
	}
	if over, _ := amount.GreaterThan(t.RemainingRefundable()); over {
		return shared.NewConflictError("REFUND_EXCEEDS_PAID",
			fmt.Sprintf("refund of %s exceeds remaining refundable %s", amount, t.RemainingRefundable()))
	}
	return t.Transition(StatusRefunding, "refund requested: "+reason, "")
}

// SettleRefund records a settled refund amount. Moves to Refunded
// when the full amount is returned, back to Completed on a partial.
func (t *Transaction) SettleRefund(amount valueobject.Money, rawPayload string) error {
	if t.Status != StatusRefunding {
		return fmt.Errorf("%w: no refund in flight, transaction is %s", shared.ErrInvalidTransition, t.Status)
	}
	if over, _ := amount.GreaterThan(t.RemainingRefundable()); over {
		return shared.NewConflictError("REFUND_EXCEEDS_PAID", "settled refund exceeds remaining refundable amount")
	}
	t.RefundedAmount = t.RefundedAmount.MustAdd(amount)
	t.RefundCount++
	if t.RefundedAmount.Equals(t.Amount) {
		return t.Transition(StatusRefunded, "fully refunded", rawPayload)
	}
	return t.Transition(StatusCompleted, "partial refund settled", rawPayload)
}

// Cancel voids an attempt that has not reached the provider's capture
func (t *Transaction) Cancel(reason string) error {
	if t.Status != StatusCreated && t.Status != StatusPending {
		return fmt.Errorf("%w: payment in status %s cannot be cancelled", shared.ErrInvalidTransition, t.Status)
	}
	return t.Transition(StatusCancelled, reason, "")
}

func (t *Transaction) appendLog(from, to Status, notes, rawPayload string) {
	t.Logs = append(t.Logs, TransactionLog{
		BaseEntity:    shared.NewBaseEntity(),
		TransactionID: t.ID,
		FromStatus:    from,
		ToStatus:      to,
		Notes:         notes,
		RawPayload:    rawPayload,
	})
}
