package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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
	paypayAPIBaseURL        = "https://api.paypay.example.jp/v2"
	paypaySandboxAPIBaseURL = "https://stg-api.paypay.example.jp/v2"
	paypayCreateQRPath      = "/codes"
	paypayQueryPath         = "/codes/payments/%s"
	paypayCancelPath        = "/codes/payments/%s/cancel"
	paypayRefundPath        = "/refunds"
)

// PayPayConfig contains credentials for the PayPay wallet gateway
type PayPayConfig struct {
	MerchantID  string
	APIKey      string
	APISecret   string
	CallbackURL string
	IsSandbox   bool
}

// Validate validates the configuration
func (c *PayPayConfig) Validate() error {
	if c.MerchantID == "" {
		return errors.New("paypay: missing merchant ID")
	}
	if c.APIKey == "" {
		return errors.New("paypay: missing API key")
	}
	if c.APISecret == "" {
		return errors.New("paypay: missing API secret")
	}
	return nil
}

// PayPayAdapter implements the Gateway interface for the PayPay wallet.
// Payment starts with a dynamic QR code; phones get a deep link into
// the PayPay app instead.
type PayPayAdapter struct {
	config     *PayPayConfig
	httpClient *http.Client
}

// NewPayPayAdapter creates a new PayPay adapter
func NewPayPayAdapter(config *PayPayConfig) (*PayPayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &PayPayAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name identifies the provider in logs and transaction records
func (a *PayPayAdapter) Name() string {
	return "paypay"
}

// Supports reports whether the adapter handles the method
func (a *PayPayAdapter) Supports(method payment.Method) bool {
	return method == payment.MethodPayPay
}

// CreatePayment registers a dynamic QR code for the amount
func (a *PayPayAdapter) CreatePayment(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.Instruction, error) {
	body := map[string]interface{}{
		"merchantPaymentId": req.TransactionNumber,
		"amount": map[string]interface{}{
			"amount":   req.Amount.IntPart(),
			"currency": "JPY",
		},
		"codeType":     "ORDER_QR",
		"orderDescription": req.Description,
		"redirectUrl":  req.ReturnURL,
		"redirectType": "WEB_LINK",
		"expiryDate":   req.ExpiresAt.Unix(),
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("paypay: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, paypayCreateQRPath, bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp paypayEnvelope[paypayQRData]
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("paypay: failed to parse response: %w", err)
	}

	return &payment.Instruction{
		Kind:                  payment.InstructionQR,
		ExternalTransactionID: resp.Data.CodeID,
		QRPayload:             resp.Data.URL,
		DeepLink:              resp.Data.DeepLink,
		ExpiresAt:             req.ExpiresAt,
	}, nil
}

// QueryPayment polls the provider for the current status
func (a *PayPayAdapter) QueryPayment(ctx context.Context, externalTransactionID string) (*payment.QueryResult, error) {
	respBody, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf(paypayQueryPath, externalTransactionID), nil)
	if err != nil {
		return nil, err
	}

	var resp paypayEnvelope[paypayPaymentData]
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("paypay: failed to parse response: %w", err)
	}

	return &payment.QueryResult{
		ExternalTransactionID: resp.Data.PaymentID,
		Status:                mapPayPayStatus(resp.Data.Status),
		PaidAmount:            valueobject.NewMoneyJPYFromInt(resp.Data.Amount.Amount),
		RawPayload:            string(respBody),
	}, nil
}

// ClosePayment cancels an unpaid QR code
func (a *PayPayAdapter) ClosePayment(ctx context.Context, externalTransactionID string) error {
	_, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf(paypayCancelPath, externalTransactionID), nil)
	return err
}

// CreateRefund asks the provider to return funds
func (a *PayPayAdapter) CreateRefund(ctx context.Context, req *payment.RefundRequest) (*payment.RefundResult, error) {
	body := map[string]interface{}{
		"merchantRefundId": req.RefundNumber,
		"paymentId":        req.ExternalTransactionID,
		"amount": map[string]interface{}{
			"amount":   req.Amount.IntPart(),
			"currency": "JPY",
		},
		"reason": req.Reason,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("paypay: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, paypayRefundPath, bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp paypayEnvelope[paypayRefundData]
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("paypay: failed to parse response: %w", err)
	}

	return &payment.RefundResult{
		ExternalRefundID: resp.Data.RefundID,
		Accepted:         resp.Data.Status == "CREATED" || resp.Data.Status == "REFUNDED",
		RawPayload:       string(respBody),
	}, nil
}

// VerifyCallback checks the webhook HMAC against the shared secret.
// PayPay sends the digest base64-encoded.
func (a *PayPayAdapter) VerifyCallback(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(a.config.APISecret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrInvalidSignature
	}
	return nil
}

// ParseCallback normalizes a verified webhook payload
func (a *PayPayAdapter) ParseCallback(payload []byte) (*payment.CallbackNotification, error) {
	var notification paypayCallbackPayload
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, fmt.Errorf("paypay: failed to parse notification: %w", err)
	}
	if notification.PaymentID == "" {
		return nil, errors.New("paypay: notification missing paymentId")
	}

	result := &payment.CallbackNotification{
		ExternalTransactionID: notification.PaymentID,
		TransactionNumber:     notification.MerchantPaymentID,
		Status:                mapPayPayStatus(notification.State),
		PaidAmount:            valueobject.NewMoneyJPYFromInt(notification.Amount),
		RawPayload:            string(payload),
	}
	if notification.PaidAt > 0 {
		t := time.Unix(notification.PaidAt, 0)
		result.PaidAt = &t
	}
	return result, nil
}

// GenerateCallbackResponse builds the body PayPay expects back
func (a *PayPayAdapter) GenerateCallbackResponse(success bool) []byte {
	if success {
		return []byte(`{"resultCode":"SUCCESS"}`)
	}
	return []byte(`{"resultCode":"RETRY"}`)
}

func (a *PayPayAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	baseURL := paypayAPIBaseURL
	if a.config.IsSandbox {
		baseURL = paypaySandboxAPIBaseURL
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("paypay: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ASSUME-MERCHANT", a.config.MerchantID)
	req.Header.Set("Authorization", "hmac "+a.config.APIKey+":"+a.signRequest(method, path, body))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paypay: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp paypayEnvelope[struct{}]
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.ResultInfo.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", shared.ErrGatewayUnavailable, errResp.ResultInfo.Code, errResp.ResultInfo.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrGatewayUnavailable, resp.StatusCode)
	}

	return respBody, nil
}

func (a *PayPayAdapter) signRequest(method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(a.config.APISecret))
	fmt.Fprintf(mac, "%s\n%s\n", method, path)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func mapPayPayStatus(status string) payment.Status {
	switch status {
	case "COMPLETED", "CAPTURED":
		return payment.StatusCompleted
	case "CREATED", "AUTHORIZED":
		return payment.StatusProcessing
	case "FAILED":
		return payment.StatusFailed
	case "CANCELED", "EXPIRED":
		return payment.StatusCancelled
	default:
		return payment.StatusProcessing
	}
}

var _ payment.Gateway = (*PayPayAdapter)(nil)
