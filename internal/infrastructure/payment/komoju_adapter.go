package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
)

const (
	komojuAPIBaseURL    = "https://komoju.example.com/api/v1"
	komojuSessionsPath  = "/sessions"
	komojuSessionPath   = "/sessions/%s"
	komojuCancelPath    = "/sessions/%s/cancel"
	komojuRefundPath    = "/payments/%s/refund"
)

// KomojuConfig contains credentials for the Komoju aggregator, which
// fronts konbini and bank transfer collection
type KomojuConfig struct {
	MerchantID  string
	APIKey      string
	APISecret   string
	CallbackURL string
	IsSandbox   bool
}

// Validate validates the configuration
func (c *KomojuConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("komoju: missing API key")
	}
	if c.APISecret == "" {
		return errors.New("komoju: missing API secret")
	}
	return nil
}

// KomojuAdapter implements the Gateway interface for konbini and bank
// transfer payments. Both are offline: the customer pays at a register
// or a bank counter and the result arrives on the webhook days later.
type KomojuAdapter struct {
	config     *KomojuConfig
	httpClient *http.Client
}

// NewKomojuAdapter creates a new Komoju adapter
func NewKomojuAdapter(config *KomojuConfig) (*KomojuAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &KomojuAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name identifies the provider in logs and transaction records
func (a *KomojuAdapter) Name() string {
	return "komoju"
}

// Supports reports whether the adapter handles the method
func (a *KomojuAdapter) Supports(method payment.Method) bool {
	return method == payment.MethodKonbini || method == payment.MethodBankTransfer
}

// CreatePayment opens a payment session and returns the offline
// payment details the customer needs
func (a *KomojuAdapter) CreatePayment(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Instruction, error) {
	body := map[string]interface{}{
		"external_order_num": req.TransactionNumber,
		"amount":             req.Amount.IntPart(),
		"currency":           "JPY",
		"return_url":         req.ReturnURL,
		"expires_at":         req.ExpiresAt.Format(time.RFC3339),
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("komoju: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, komojuSessionsPath, bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp komojuSession
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("komoju: failed to parse response: %w", err)
	}

	instruction := &payment.Instruction{
		ExternalTransactionID: resp.ID,
		ExpiresAt:             req.ExpiresAt,
	}
	if resp.PaymentDetails.Store != "" {
		instruction.Kind = payment.InstructionKonbini
		instruction.PaymentCode = resp.PaymentDetails.ConfirmationCode
		instruction.StoreName = resp.PaymentDetails.Store
	} else {
		instruction.Kind = payment.InstructionBank
		instruction.BankName = resp.PaymentDetails.BankName
		instruction.BranchName = resp.PaymentDetails.BranchName
		instruction.AccountNumber = resp.PaymentDetails.AccountNumber
		instruction.AccountHolder = resp.PaymentDetails.AccountHolder
	}
	return instruction, nil
}

// QueryPayment polls the provider for the current status
func (a *KomojuAdapter) QueryPayment(ctx context.Context, externalTransactionID string) (*payment.QueryResult, error) {
	respBody, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf(komojuSessionPath, externalTransactionID), nil)
	if err != nil {
		return nil, err
	}

	var resp komojuSession
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("komoju: failed to parse response: %w", err)
	}

	return &payment.QueryResult{
		ExternalTransactionID: resp.ID,
		Status:                mapKomojuStatus(resp.Status),
		PaidAmount:            valueobject.NewMoneyJPYFromInt(resp.Amount),
		RawPayload:            string(respBody),
	}, nil
}

// ClosePayment cancels an unpaid session so late payments bounce at
// the register
func (a *KomojuAdapter) ClosePayment(ctx context.Context, externalTransactionID string) error {
	_, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf(komojuCancelPath, externalTransactionID), nil)
	return err
}

// CreateRefund asks the provider to return funds. Konbini refunds are
// paid out by bank transfer on the provider side.
func (a *KomojuAdapter) CreateRefund(ctx context.Context, req *payment.RefundRequest) (*payment.RefundResult, error) {
	body := map[string]interface{}{
		"external_refund_num": req.RefundNumber,
		"amount":              req.Amount.IntPart(),
		"description":         req.Reason,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("komoju: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf(komojuRefundPath, req.ExternalTransactionID), bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp komojuRefund
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("komoju: failed to parse response: %w", err)
	}

	return &payment.RefundResult{
		ExternalRefundID: resp.ID,
		Accepted:         resp.Status == "refunded" || resp.Status == "pending",
		RawPayload:       string(respBody),
	}, nil
}

// VerifyCallback checks the X-Komoju-Signature HMAC against the secret
func (a *KomojuAdapter) VerifyCallback(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(a.config.APISecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrInvalidSignature
	}
	return nil
}

// ParseCallback normalizes a verified webhook payload
func (a *KomojuAdapter) ParseCallback(payload []byte) (*payment.CallbackNotification, error) {
	var event komojuWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("komoju: failed to parse notification: %w", err)
	}
	if event.Data.ID == "" {
		return nil, errors.New("komoju: notification missing session id")
	}

	result := &payment.CallbackNotification{
		ExternalTransactionID: event.Data.ID,
		TransactionNumber:     event.Data.ExternalOrderNum,
		Status:                mapKomojuEvent(event.Type, event.Data.Status),
		PaidAmount:            valueobject.NewMoneyJPYFromInt(event.Data.Amount),
		RawPayload:            string(payload),
	}
	if event.Data.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, event.Data.CompletedAt); err == nil {
			result.PaidAt = &t
		}
	}
	return result, nil
}

// GenerateCallbackResponse builds the body Komoju expects back
func (a *KomojuAdapter) GenerateCallbackResponse(success bool) []byte {
	if success {
		return []byte(`{"received":true}`)
	}
	return []byte(`{"received":false}`)
}

func (a *KomojuAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, komojuAPIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("komoju: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(a.config.APIKey, "")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("komoju: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp komojuError
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", shared.ErrGatewayUnavailable, errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrGatewayUnavailable, resp.StatusCode)
	}

	return respBody, nil
}

func mapKomojuStatus(status string) payment.Status {
	switch status {
	case "completed", "captured":
		return payment.StatusCompleted
	case "pending", "authorized":
		return payment.StatusProcessing
	case "failed":
		return payment.StatusFailed
	case "cancelled", "expired":
		return payment.StatusCancelled
	default:
		return payment.StatusProcessing
	}
}

// mapKomojuEvent folds the event type into the session status; the
// payment.captured event is authoritative over a stale status field
func mapKomojuEvent(eventType, status string) payment.Status {
	switch eventType {
	case "payment.captured":
		return payment.StatusCompleted
	case "payment.failed":
		return payment.StatusFailed
	case "payment.expired", "payment.cancelled":
		return payment.StatusCancelled
	}
	return mapKomojuStatus(status)
}

var _ payment.Gateway = (*KomojuAdapter)(nil)
