package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	shippingapp "github.com/komono/backend/internal/application/shipping"
	"github.com/komono/backend/internal/domain/shared"
)

// ShippingHandler exposes shipment booking and the carrier tracking webhook
type ShippingHandler struct {
	BaseHandler
	shipments *shippingapp.Service
}

// NewShippingHandler creates a new ShippingHandler
func NewShippingHandler(shipments *shippingapp.Service) *ShippingHandler {
	return &ShippingHandler{shipments: shipments}
}

// RegisterRoutes registers shipping routes
func (h *ShippingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	shipments := rg.Group("/shipments")
	{
		shipments.POST("", h.CreateShipment)
		shipments.POST("/webhook", h.CarrierWebhook)
	}
}

// CreateShipment books a carrier shipment for a confirmed order (staff endpoint)
func (h *ShippingHandler) CreateShipment(c *gin.Context) {
	var req shippingapp.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.shipments.CreateShipment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// CarrierWebhook ingests a signed tracking notification from the carrier.
// Deliveries are at-least-once; replayed events are acknowledged without
// reapplying.
func (h *ShippingHandler) CarrierWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "failed to read request body")
		return
	}

	signature := c.GetHeader("X-Carrier-Signature")

	_, err = h.shipments.IngestCarrierWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidSignature) {
			c.String(http.StatusUnauthorized, "unauthorized")
			return
		}
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
