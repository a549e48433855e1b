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
	gmoAPIBaseURL        = "https://pay.gmo.example.jp/api/v1"
	gmoSandboxAPIBaseURL = "https://sandbox.pay.gmo.example.jp/api/v1"
	gmoCreatePaymentPath = "/payments"
	gmoQueryPaymentPath  = "/payments/%s"
	gmoClosePaymentPath  = "/payments/%s/void"
	gmoRefundPath        = "/payments/%s/refunds"
)

// GMOConfig contains credentials for the GMO credit card gateway
type GMOConfig struct {
	MerchantID  string
	APIKey      string
	APISecret   string
	CallbackURL string
	IsSandbox   bool
}

// Validate validates the configuration
func (c *GMOConfig) Validate() error {
	if c.MerchantID == "" {
		return errors.New("gmo: missing merchant ID")
	}
	if c.APIKey == "" {
		return errors.New("gmo: missing API key")
	}
	if c.APISecret == "" {
		return errors.New("gmo: missing API secret")
	}
	if c.CallbackURL == "" {
		return errors.New("gmo: missing callback URL")
	}
	return nil
}

// GMOAdapter implements the Gateway interface for GMO hosted credit
// card payments. The customer is redirected to the gateway's hosted
// page; the outcome arrives on the asynchronous webhook.
type GMOAdapter struct {
	config     *GMOConfig
	httpClient *http.Client
}

// NewGMOAdapter creates a new GMO adapter
func NewGMOAdapter(config *GMOConfig) (*GMOAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &GMOAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name identifies the provider in logs and transaction records
func (a *GMOAdapter) Name() string {
	return "gmo"
}

// Supports reports whether the adapter handles the method
func (a *GMOAdapter) Supports(method payment.Method) bool {
	return method == payment.MethodCreditCard
}

// CreatePayment registers the intent and returns the hosted page redirect
func (a *GMOAdapter) CreatePayment(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Instruction, error) {
	body := map[string]interface{}{
		"merchant_id":  a.config.MerchantID,
		"order_id":     req.TransactionNumber,
		"amount":       req.Amount.IntPart(),
		"currency":     "JPY",
		"description":  req.Description,
		"return_url":   req.ReturnURL,
		"webhook_url":  a.config.CallbackURL,
		"expire_after": req.ExpiresAt.Format(time.RFC3339),
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gmo: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, gmoCreatePaymentPath, bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp gmoPaymentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("gmo: failed to parse response: %w", err)
	}

	return &payment.Instruction{
		Kind:                  payment.InstructionRedirect,
		ExternalTransactionID: resp.PaymentID,
		RedirectURL:           resp.RedirectURL,
		ExpiresAt:             req.ExpiresAt,
	}, nil
}

// QueryPayment polls the provider for the current status
func (a *GMOAdapter) QueryPayment(ctx context.Context, externalTransactionID string) (*payment.QueryResult, error) {
	respBody, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf(gmoQueryPaymentPath, externalTransactionID), nil)
	if err != nil {
		return nil, err
	}

	var resp gmoPaymentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("gmo: failed to parse response: %w", err)
	}

	return &payment.QueryResult{
		ExternalTransactionID: resp.PaymentID,
		Status:                mapGMOStatus(resp.Status),
		PaidAmount:            valueobject.NewMoneyJPYFromInt(resp.Amount),
		RawPayload:            string(respBody),
	}, nil
}

// ClosePayment voids an unpaid intent at the provider
func (a *GMOAdapter) ClosePayment(ctx context.Context, externalTransactionID string) error {
	_, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf(gmoClosePaymentPath, externalTransactionID), nil)
	return err
}

// CreateRefund asks the provider to return funds on a captured payment
func (a *GMOAdapter) CreateRefund(ctx context.Context, req *payment.RefundRequest) (*payment.RefundResult, error) {
	body := map[string]interface{}{
		"refund_id": req.RefundNumber,
		"amount":    req.Amount.IntPart(),
		"reason":    req.Reason,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gmo: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf(gmoRefundPath, req.ExternalTransactionID), bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp gmoRefundResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("gmo: failed to parse response: %w", err)
	}

	return &payment.RefundResult{
		ExternalRefundID: resp.RefundID,
		Accepted:         resp.Status == "accepted" || resp.Status == "refunded",
		RawPayload:       string(respBody),
	}, nil
}

// VerifyCallback checks the webhook HMAC against the shared secret
func (a *GMOAdapter) VerifyCallback(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(a.config.APISecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrInvalidSignature
	}
	return nil
}

// ParseCallback normalizes a verified webhook payload
func (a *GMOAdapter) ParseCallback(payload []byte) (*payment.CallbackNotification, error) {
	var notification gmoCallbackPayload
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, fmt.Errorf("gmo: failed to parse notification: %w", err)
	}
	if notification.PaymentID == "" {
		return nil, errors.New("gmo: notification missing payment_id")
	}

	result := &payment.CallbackNotification{
		ExternalTransactionID: notification.PaymentID,
		TransactionNumber:     notification.OrderID,
		Status:                mapGMOStatus(notification.Status),
		PaidAmount:            valueobject.NewMoneyJPYFromInt(notification.Amount),
		RawPayload:            string(payload),
	}
	if notification.CapturedAt != "" {
		if t, err := time.Parse(time.RFC3339, notification.CapturedAt); err == nil {
			result.PaidAt = &t
		}
	}
	return result, nil
}

// GenerateCallbackResponse builds the body GMO expects back
func (a *GMOAdapter) GenerateCallbackResponse(success bool) []byte {
	if success {
		return []byte(`{"result":"ok"}`)
	}
	return []byte(`{"result":"retry"}`)
}

func (a *GMOAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	baseURL := gmoAPIBaseURL
	if a.config.IsSandbox {
		baseURL = gmoSandboxAPIBaseURL
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("gmo: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-GMO-API-Key", a.config.APIKey)
	req.Header.Set("X-GMO-Signature", a.signRequest(method, path, body))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gmo: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp gmoErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", shared.ErrGatewayUnavailable, errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrGatewayUnavailable, resp.StatusCode)
	}

	return respBody, nil
}

// signRequest computes the request HMAC over method, path and body
func (a *GMOAdapter) signRequest(method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(a.config.APISecret))
	fmt.Fprintf(mac, "%s\n%s\n", method, path)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func mapGMOStatus(status string) payment.Status {
	switch status {
	case "captured", "paid":
		return payment.StatusCompleted
	case "authorized", "pending":
		return payment.StatusProcessing
	case "failed", "declined":
		return payment.StatusFailed
	case "voided", "expired":
		return payment.StatusCancelled
	default:
		return payment.StatusProcessing
	}
}

var _ payment.Gateway = (*GMOAdapter)(nil)
