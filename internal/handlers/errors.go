package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
)

// respondError maps service errors to HTTP responses
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Validation failed",
			Message: validationErr.Error(),
			Code:    "validation_error",
		})
		return
	}

	var preconditionErr *models.PreconditionNotMetError
	if errors.As(err, &preconditionErr) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "Precondition not met",
			Message: preconditionErr.Error(),
			Code:    preconditionErr.Reason,
		})
		return
	}

	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Retryable {
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error:   "Payment processor unavailable",
				Message: "The payment could not be confirmed; it will be resolved automatically",
				Code:    "gateway_unavailable",
			})
			return
		}
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Error:   "Payment declined",
			Message: gwErr.Message,
			Code:    "gateway_declined",
		})
		return
	}

	if errors.Is(err, models.ErrPaymentNotFound) || errors.Is(err, models.ErrSourceStateNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
			Code:    "not_found",
		})
		return
	}

	if errors.Is(err, models.ErrReconciliationAmbiguous) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "Payment outcome unresolved",
			Message: "The processor has not confirmed this payment yet",
			Code:    "reconciliation_ambiguous",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "Internal server error",
		Message: err.Error(),
	})
}
