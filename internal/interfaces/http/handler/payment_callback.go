package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/komono/backend/internal/application/payment"
	"github.com/komono/backend/internal/domain/payment"
	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/infrastructure/telemetry"
)

// PaymentCallbackHandler handles payment gateway webhook endpoints.
// These are called by the gateways themselves and carry their own
// signature scheme instead of user authentication.
type PaymentCallbackHandler struct {
	BaseHandler
	callbacks *paymentapp.CallbackService
	gateways  payment.GatewaySelector
	metrics   *telemetry.BusinessMetrics
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler.
// metrics may be nil when telemetry is disabled.
func NewPaymentCallbackHandler(callbacks *paymentapp.CallbackService, gateways payment.GatewaySelector, metrics *telemetry.BusinessMetrics) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		callbacks: callbacks,
		gateways:  gateways,
		metrics:   metrics,
	}
}

// RegisterRoutes registers callback routes
func (h *PaymentCallbackHandler) RegisterRoutes(rg *gin.RouterGroup) {
	callbacks := rg.Group("/payments/callbacks")
	{
		callbacks.POST("/gmo", func(c *gin.Context) { h.handle(c, "gmo") })
		callbacks.POST("/paypay", func(c *gin.Context) { h.handle(c, "paypay") })
		callbacks.POST("/komoju", func(c *gin.Context) { h.handle(c, "komoju") })
	}
}

func (h *PaymentCallbackHandler) handle(c *gin.Context, gatewayName string) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.respondFailure(c, gatewayName, http.StatusBadRequest)
		return
	}

	signature := h.extractSignature(c, gatewayName)

	result, err := h.callbacks.ProcessCallback(c.Request.Context(), gatewayName, payload, signature)
	if err != nil {
		// a forged signature gets a bare 401 so the response does not
		// leak whether the referenced transaction exists
		if errors.Is(err, shared.ErrInvalidSignature) {
			c.String(http.StatusUnauthorized, "unauthorized")
			return
		}
		// transient failure: answer in the gateway's retry format so it
		// redelivers
		h.respondFailure(c, gatewayName, http.StatusInternalServerError)
		return
	}

	if result.AlreadyProcessed {
		h.metrics.RecordWebhookReplay(c.Request.Context(), gatewayName)
	}
	c.Data(http.StatusOK, "application/json", result.GatewayResponse)
}

// extractSignature pulls the gateway-specific signature header
func (h *PaymentCallbackHandler) extractSignature(c *gin.Context, gatewayName string) string {
	switch gatewayName {
	case "gmo":
		return c.GetHeader("X-GMO-Signature")
	case "paypay":
		return c.GetHeader("X-PayPay-Signature")
	case "komoju":
		return c.GetHeader("X-Komoju-Signature")
	default:
		return ""
	}
}

// respondFailure answers in the gateway's failure format when known,
// otherwise with a plain status
func (h *PaymentCallbackHandler) respondFailure(c *gin.Context, gatewayName string, status int) {
	gw, err := h.gateways.ForName(gatewayName)
	if err != nil {
		c.String(status, "fail")
		return
	}
	c.Data(status, "application/json", gw.GenerateCallbackResponse(false))
}
