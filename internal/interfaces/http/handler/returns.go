package handler

import (
	"github.com/gin-gonic/gin"

	returnsapp "github.com/komono/backend/internal/application/returns"
)

// ReturnsHandler exposes the return and refund endpoints
type ReturnsHandler struct {
	BaseHandler
	returns *returnsapp.Service
}

// NewReturnsHandler creates a new ReturnsHandler
func NewReturnsHandler(returns *returnsapp.Service) *ReturnsHandler {
	return &ReturnsHandler{returns: returns}
}

// RegisterRoutes registers return routes
func (h *ReturnsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	returns := rg.Group("/returns")
	{
		returns.POST("", h.SubmitReturn)
		returns.POST("/:id/decision", h.ProcessReturn)
	}
}

// SubmitReturn files a post-delivery return against order items
func (h *ReturnsHandler) SubmitReturn(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "authentication required")
		return
	}

	var req returnsapp.SubmitReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.UserID = userID

	result, err := h.returns.SubmitReturn(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ProcessReturn approves or rejects a pending return (staff endpoint)
func (h *ReturnsHandler) ProcessReturn(c *gin.Context) {
	returnID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "invalid return id")
		return
	}

	var req returnsapp.ProcessReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.ReturnID = returnID

	result, err := h.returns.ProcessReturn(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
