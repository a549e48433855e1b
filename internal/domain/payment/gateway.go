package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/komono/backend/internal/domain/shared/valueobject"
)

// Method selects the gateway and payment flavor
type Method string

const (
	MethodCreditCard   Method = "CREDIT_CARD"
	MethodPayPay       Method = "PAYPAY"
	MethodKonbini      Method = "KONBINI"
	MethodBankTransfer Method = "BANK_TRANSFER"
)

// IsValid checks if the method is a known value
func (m Method) IsValid() bool {
	switch m {
	case MethodCreditCard, MethodPayPay, MethodKonbini, MethodBankTransfer:
		return true
	}
	return false
}

// String returns the string representation
func (m Method) String() string {
	return string(m)
}

// InstructionKind describes how the customer completes the payment
type InstructionKind string

const (
	InstructionRedirect InstructionKind = "REDIRECT"
	InstructionQR       InstructionKind = "QR"
	InstructionKonbini  InstructionKind = "KONBINI"
	InstructionBank     InstructionKind = "BANK_TRANSFER"
)

// CreatePaymentRequest is the gateway-facing payment intent
type CreatePaymentRequest struct {
	TransactionNumber string
	OrderNumber       string
	Amount            valueobject.Money
	Description       string
	ReturnURL         string
	ExpiresAt         time.Time
}

// Instruction is what the customer needs to complete the payment:
// a redirect URL, a QR payload, or konbini/bank transfer details.
type Instruction struct {
	Kind                  InstructionKind `json:"kind"`
	ExternalTransactionID string          `json:"external_transaction_id"`
	RedirectURL           string          `json:"redirect_url,omitempty"`
	QRPayload             string          `json:"qr_payload,omitempty"`
	DeepLink              string          `json:"deep_link,omitempty"`
	PaymentCode           string          `json:"payment_code,omitempty"`
	StoreName             string          `json:"store_name,omitempty"`
	BankName              string          `json:"bank_name,omitempty"`
	BranchName            string          `json:"branch_name,omitempty"`
	AccountNumber         string          `json:"account_number,omitempty"`
	AccountHolder         string          `json:"account_holder,omitempty"`
	ExpiresAt             time.Time       `json:"expires_at"`
}

// QueryResult is the gateway's answer to a status poll
type QueryResult struct {
	ExternalTransactionID string
	Status                Status
	PaidAmount            valueobject.Money
	RawPayload            string
}

// RefundRequest asks the gateway to return funds
type RefundRequest struct {
	ExternalTransactionID string
	RefundNumber          string
	Amount                valueobject.Money
	Reason                string
}

// RefundResult is the gateway's refund acknowledgement
type RefundResult struct {
	ExternalRefundID string
	Accepted         bool
	RawPayload       string
}

// CallbackNotification is the normalized form of a gateway webhook
type CallbackNotification struct {
	ExternalTransactionID string
	TransactionNumber     string
	Status                Status
	PaidAmount            valueobject.Money
	PaidAt                *time.Time
	RawPayload            string
}

// Gateway is the port every payment provider adapter implements.
// Core logic is agnostic to provider protocol beyond this contract.
type Gateway interface {
	// Name identifies the provider in logs and transaction records
	Name() string

	// Supports reports whether the adapter handles the method
	Supports(method Method) bool

	// CreatePayment registers the intent with the provider and
	// returns the customer-facing instruction
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Instruction, error)

	// QueryPayment polls the provider for the current status
	QueryPayment(ctx context.Context, externalTransactionID string) (*QueryResult, error)

	// ClosePayment voids an unpaid intent at the provider
	ClosePayment(ctx context.Context, externalTransactionID string) error

	// CreateRefund asks the provider to return funds
	CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResult, error)

	// VerifyCallback checks the webhook signature against the shared
	// secret. Returns shared.ErrInvalidSignature on mismatch.
	VerifyCallback(payload []byte, signature string) error

	// ParseCallback normalizes a verified webhook payload
	ParseCallback(payload []byte) (*CallbackNotification, error)

	// GenerateCallbackResponse builds the body the provider expects
	// back, success or retry-request
	GenerateCallbackResponse(success bool) []byte
}

// GatewaySelector resolves the adapter for a payment method
type GatewaySelector interface {
	ForMethod(method Method) (Gateway, error)
	ForName(name string) (Gateway, error)
}

// RefundNumberFor derives a refund business number from a transaction
func RefundNumberFor(transactionNumber string, seq int) string {
	return fmt.Sprintf("%s-R%d", transactionNumber, seq)
}
