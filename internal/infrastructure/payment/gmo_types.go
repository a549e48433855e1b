package payment

// gmoPaymentResponse is the provider's payment resource
type gmoPaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
	ExpireAt    string `json:"expire_at"`
}

// gmoRefundResponse is the provider's refund acknowledgement
type gmoRefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
}

// gmoCallbackPayload is the webhook body GMO posts on status changes
type gmoCallbackPayload struct {
	PaymentID  string `json:"payment_id"`
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	CapturedAt string `json:"captured_at"`
}

// gmoErrorResponse is the provider's error envelope
type gmoErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
