package handler

import (
	"github.com/gin-gonic/gin"

	paymentapp "github.com/komono/backend/internal/application/payment"
)

// PaymentHandler exposes payment attempt and refund endpoints
type PaymentHandler struct {
	BaseHandler
	payments *paymentapp.Service
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *paymentapp.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.CreatePayment)
		payments.POST("/:id/refunds", h.Refund)
	}
}

// CreatePayment opens a payment attempt and returns the customer-facing
// instruction (redirect URL, QR payload, or konbini code)
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req paymentapp.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.payments.CreatePayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Refund returns funds for a completed transaction (staff endpoint)
func (h *PaymentHandler) Refund(c *gin.Context) {
	transactionID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "invalid transaction id")
		return
	}

	var req paymentapp.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.TransactionID = transactionID

	result, err := h.payments.Refund(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
