package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"settlement-service/internal/models"
	"settlement-service/internal/services"
)

// WebhookHandler handles gateway notification HTTP requests
type WebhookHandler struct {
	service *services.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleGatewayWebhook handles POST /webhooks/gateway.
// It acknowledges with 200 whenever the event was durably recorded, even if
// processing failed: our own sweep retries stored events, so failing the
// response would only duplicate deliveries we already have. Only a failure
// to store the event returns non-200, prompting the processor to redeliver.
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Failed to read request body",
			Message: err.Error(),
		})
		return
	}

	if err := h.service.ProcessWebhook(c.Request.Context(), body); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to record notification",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "received"})
}
