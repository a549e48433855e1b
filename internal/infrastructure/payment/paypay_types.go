package payment

// paypayEnvelope is the provider's response wrapper
type paypayEnvelope[T any] struct {
	ResultInfo paypayResultInfo `json:"resultInfo"`
	Data       T                `json:"data"`
}

type paypayResultInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// paypayQRData is the created dynamic QR code
type paypayQRData struct {
	CodeID   string `json:"codeId"`
	URL      string `json:"url"`
	DeepLink string `json:"deeplink"`
}

// paypayPaymentData is the provider's payment resource
type paypayPaymentData struct {
	PaymentID         string       `json:"paymentId"`
	MerchantPaymentID string       `json:"merchantPaymentId"`
	Status            string       `json:"status"`
	Amount            paypayAmount `json:"amount"`
}

type paypayAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// paypayRefundData is the provider's refund acknowledgement
type paypayRefundData struct {
	RefundID string `json:"refundId"`
	Status   string `json:"status"`
}

// paypayCallbackPayload is the webhook body PayPay posts on state changes
type paypayCallbackPayload struct {
	PaymentID         string `json:"paymentId"`
	MerchantPaymentID string `json:"merchantPaymentId"`
	State             string `json:"state"`
	Amount            int64  `json:"amount"`
	PaidAt            int64  `json:"paidAt"`
}
