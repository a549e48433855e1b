package payment

// komojuSession is the provider's payment session resource
type komojuSession struct {
	ID               string               `json:"id"`
	ExternalOrderNum string               `json:"external_order_num"`
	Status           string               `json:"status"`
	Amount           int64                `json:"amount"`
	Currency         string               `json:"currency"`
	CompletedAt      string               `json:"completed_at"`
	PaymentDetails   komojuPaymentDetails `json:"payment_details"`
}

// komojuPaymentDetails carries the offline payment instructions: a
// konbini confirmation code or bank transfer coordinates
type komojuPaymentDetails struct {
	Store            string `json:"store"`
	ConfirmationCode string `json:"confirmation_code"`
	BankName         string `json:"bank_name"`
	BranchName       string `json:"branch_name"`
	AccountNumber    string `json:"account_number"`
	AccountHolder    string `json:"account_holder"`
}

// komojuRefund is the provider's refund acknowledgement
type komojuRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

// komojuWebhookEvent is the webhook envelope Komoju posts
type komojuWebhookEvent struct {
	Type string        `json:"type"`
	Data komojuSession `json:"data"`
}

type komojuError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
