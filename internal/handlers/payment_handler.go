package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"settlement-service/internal/models"
	"settlement-service/internal/services"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	service *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
			Code:    "validation_error",
		})
		return
	}

	resp, err := h.service.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// A resubmission of an existing leg is success against the original row.
	if resp.Duplicate {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid payment ID",
			Message: err.Error(),
			Code:    "validation_error",
		})
		return
	}

	resp, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPaymentsBySource handles GET /api/v1/payments/by-source/:sourceType/:sourceId
func (h *PaymentHandler) ListPaymentsBySource(c *gin.Context) {
	sourceType := models.SourceType(c.Param("sourceType"))
	sourceID := c.Param("sourceId")

	payments, err := h.service.ListPaymentsBySource(c.Request.Context(), sourceType, sourceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}

// GetCounterpartyBalance handles GET /api/v1/counterparties/:id/balance
func (h *PaymentHandler) GetCounterpartyBalance(c *gin.Context) {
	balance, err := h.service.CounterpartyBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// GetCommissionSummary handles GET /api/v1/commission/summary
func (h *PaymentHandler) GetCommissionSummary(c *gin.Context) {
	summary, err := h.service.CommissionSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
