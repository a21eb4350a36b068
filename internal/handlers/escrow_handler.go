package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"settlement-service/internal/models"
	"settlement-service/internal/services"
)

// EscrowHandler handles escrow and source-state HTTP requests
type EscrowHandler struct {
	service *services.EscrowService
}

// NewEscrowHandler creates a new escrow handler
func NewEscrowHandler(service *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{service: service}
}

// ReleaseEscrow handles POST /api/v1/escrow/:sourceType/:sourceId/release
func (h *EscrowHandler) ReleaseEscrow(c *gin.Context) {
	sourceType := models.SourceType(c.Param("sourceType"))
	sourceID := c.Param("sourceId")

	result, err := h.service.ReleaseEscrow(c.Request.Context(), sourceType, sourceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefundPayment handles POST /api/v1/payments/:id/refund
func (h *EscrowHandler) RefundPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid payment ID",
			Message: err.Error(),
			Code:    "validation_error",
		})
		return
	}

	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: "reason is required",
			Code:    "validation_error",
		})
		return
	}

	resp, err := h.service.Refund(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelPayment handles POST /api/v1/payments/:id/cancel
func (h *EscrowHandler) CancelPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid payment ID",
			Message: err.Error(),
			Code:    "validation_error",
		})
		return
	}

	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: "reason is required",
			Code:    "validation_error",
		})
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkWorkCompleted handles POST /api/v1/sources/:sourceType/:sourceId/complete
func (h *EscrowHandler) MarkWorkCompleted(c *gin.Context) {
	sourceType := models.SourceType(c.Param("sourceType"))
	sourceID := c.Param("sourceId")

	state, err := h.service.MarkWorkCompleted(c.Request.Context(), sourceType, sourceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// MarkConfirmed handles POST /api/v1/sources/:sourceType/:sourceId/confirm
func (h *EscrowHandler) MarkConfirmed(c *gin.Context) {
	sourceType := models.SourceType(c.Param("sourceType"))
	sourceID := c.Param("sourceId")

	state, err := h.service.MarkConfirmed(c.Request.Context(), sourceType, sourceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
