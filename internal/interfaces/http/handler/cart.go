package handler

import (
	"github.com/gin-gonic/gin"

	cartapp "github.com/komono/backend/internal/application/cart"
)

// CartHandler exposes cart operations. Carts belong to a signed-in
// user or, for guests, to an opaque session token.
type CartHandler struct {
	BaseHandler
	carts *cartapp.Service
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *cartapp.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

// RegisterRoutes registers cart routes
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	carts := rg.Group("/carts")
	{
		carts.POST("/items", h.AddItem)
		carts.PUT("/:id/items", h.UpdateItem)
		carts.DELETE("/:id/items", h.RemoveItem)
		carts.POST("/:id/coupon", h.ApplyCoupon)
		carts.GET("/:id/snapshot", h.GetSnapshot)
	}
}

// AddItem adds a line to the caller's cart, creating the cart on first use
func (h *CartHandler) AddItem(c *gin.Context) {
	var req cartapp.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if userID, err := getUserID(c); err == nil {
		req.UserID = &userID
	}

	result, err := h.carts.AddItem(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UpdateItem changes the quantity of a cart line
func (h *CartHandler) UpdateItem(c *gin.Context) {
	cartID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "invalid cart id")
		return
	}

	var req cartapp.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.CartID = cartID

	result, err := h.carts.UpdateItem(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RemoveItem deletes a cart line
func (h *CartHandler) RemoveItem(c *gin.Context) {
	cartID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "invalid cart id")
		return
	}

	var req cartapp.RemoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.CartID = cartID

	result, err := h.carts.RemoveItem(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ApplyCoupon records a coupon code on the cart
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	cartID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "invalid cart id")
		return
	}

	var req cartapp.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.CartID = cartID

	result, err := h.carts.ApplyCoupon(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetSnapshot prices the cart against live stock and catalog data
func (h *CartHandler) GetSnapshot(c *gin.Context) {
	cartID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "invalid cart id")
		return
	}

	snapshot, err := h.carts.GetSnapshot(c.Request.Context(), cartID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}
