package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/repository"
)

// WebhookService reconciles settlement state with processor notifications.
// Notifications carry no trusted state: every delivery triggers a re-fetch of
// the authoritative resource, and the guarded transitions make duplicated or
// reordered deliveries converge on the same final state.
type WebhookService struct {
	repo       repository.PaymentRepositoryInterface
	gateway    gateway.Gateway
	dispatcher Dispatcher
	logger     *logrus.Entry
}

// NewWebhookService creates a new webhook service
func NewWebhookService(repo repository.PaymentRepositoryInterface, gw gateway.Gateway, dispatcher Dispatcher, logger *logrus.Logger) *WebhookService {
	return &WebhookService{
		repo:       repo,
		gateway:    gw,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "webhook_service"),
	}
}

// webhookEnvelope covers both notification formats the processor sends:
// the current {type, data: {id}} shape and the legacy {topic, resource: url}
// shape
type webhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
	Topic    string `json:"topic"`
	Resource string `json:"resource"`
}

// normalizeEnvelope extracts (resourceType, resourceID) from a raw
// notification body. The legacy resource field is a URL whose last path
// segment is the resource id.
func normalizeEnvelope(body []byte) (string, string, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", fmt.Errorf("unparseable notification body: %w", err)
	}

	if env.Type != "" && env.Data.ID.String() != "" {
		return env.Type, env.Data.ID.String(), nil
	}
	if env.Topic != "" && env.Resource != "" {
		segments := strings.Split(strings.TrimRight(env.Resource, "/"), "/")
		id := segments[len(segments)-1]
		if id == "" {
			return "", "", fmt.Errorf("legacy notification resource %q has no id", env.Resource)
		}
		return env.Topic, id, nil
	}
	return "", "", fmt.Errorf("notification body matches neither envelope format")
}

// ProcessWebhook records an incoming notification and reconciles the
// referenced resource. The event row is written before any processing so the
// handler can acknowledge receipt regardless of what happens next; a
// processing failure leaves the row unprocessed for the sweep to retry.
func (s *WebhookService) ProcessWebhook(ctx context.Context, body []byte) error {
	var payload models.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = models.JSONB{"raw": string(body)}
	}

	resourceType, resourceID, normErr := normalizeEnvelope(body)
	event := &models.WebhookEvent{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Payload:      payload,
	}
	if normErr != nil {
		// Malformed deliveries are kept for inspection but never retried.
		now := time.Now()
		event.Processed = true
		event.ProcessedAt = &now
		event.ProcessingError = normErr.Error()
	}
	if err := s.repo.CreateWebhookEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to store webhook event: %w", err)
	}
	if normErr != nil {
		s.logger.WithError(normErr).Warn("Discarding malformed notification")
		return nil
	}

	if err := s.reconcileResource(ctx, resourceType, resourceID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"resource_type": resourceType,
			"resource_id":   resourceID,
		}).Error("Failed to process notification")
		event.ProcessingError = err.Error()
		event.RetryCount++
		if updateErr := s.repo.UpdateWebhookEvent(ctx, event); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to record processing error")
		}
		// The stored event is retried by the sweep; the delivery itself
		// succeeded.
		return nil
	}

	now := time.Now()
	event.Processed = true
	event.ProcessedAt = &now
	event.ProcessingError = ""
	if err := s.repo.UpdateWebhookEvent(ctx, event); err != nil {
		s.logger.WithError(err).Error("Failed to mark webhook event processed")
	}
	return nil
}

// RetryEvent re-runs reconciliation for a stored, unprocessed event
func (s *WebhookService) RetryEvent(ctx context.Context, event *models.WebhookEvent) error {
	if err := s.reconcileResource(ctx, event.ResourceType, event.ResourceID); err != nil {
		event.RetryCount++
		event.ProcessingError = err.Error()
		if updateErr := s.repo.UpdateWebhookEvent(ctx, event); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to record retry error")
		}
		return err
	}
	now := time.Now()
	event.Processed = true
	event.ProcessedAt = &now
	event.ProcessingError = ""
	return s.repo.UpdateWebhookEvent(ctx, event)
}

func (s *WebhookService) reconcileResource(ctx context.Context, resourceType, resourceID string) error {
	switch resourceType {
	case "payment":
		return s.reconcileGatewayPayment(ctx, resourceID)
	case "merchant_order":
		order, err := s.gateway.GetMerchantOrder(ctx, resourceID)
		if err != nil {
			return fmt.Errorf("failed to fetch merchant order %s: %w", resourceID, err)
		}
		for _, paymentID := range order.PaymentIDs {
			if err := s.reconcileGatewayPayment(ctx, paymentID); err != nil {
				return err
			}
		}
		return nil
	default:
		s.logger.WithField("resource_type", resourceType).Debug("Ignoring notification for unhandled resource type")
		return nil
	}
}

// reconcileGatewayPayment fetches the authoritative payment state from the
// processor and applies it locally
func (s *WebhookService) reconcileGatewayPayment(ctx context.Context, gatewayPaymentID string) error {
	resource, err := s.gateway.GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment %s: %w", gatewayPaymentID, err)
	}
	return s.ApplyResource(ctx, resource)
}

// ApplyResource applies an authoritative processor payment resource to the
// local record. It locates the record by gateway payment id, falling back to
// the external reference for charges whose synchronous response was lost, and
// applies the mapped outcome through the guarded transition. A transition
// that does not match (already applied, or the record is in a later state)
// is a no-op.
func (s *WebhookService) ApplyResource(ctx context.Context, resource *gateway.PaymentResource) error {
	payment, err := s.repo.GetPaymentByGatewayID(ctx, resource.ID)
	if errors.Is(err, models.ErrPaymentNotFound) && resource.ExternalReference != "" {
		payment, err = s.repo.GetPaymentByExternalReference(ctx, resource.ExternalReference)
		if err == nil && payment.GatewayPaymentID == "" {
			if backfillErr := s.repo.UpdateGatewayPaymentID(ctx, payment.ID, resource.ID); backfillErr != nil {
				s.logger.WithError(backfillErr).WithField("payment_id", payment.ID).Error("Failed to backfill gateway payment id")
			}
		}
	}
	if errors.Is(err, models.ErrPaymentNotFound) {
		s.logger.WithFields(logrus.Fields{
			"gateway_payment_id": resource.ID,
			"external_reference": resource.ExternalReference,
		}).Warn("Notification references unknown payment")
		return nil
	}
	if err != nil {
		return err
	}

	outcome := gateway.MapStatus(resource.Status)
	var target models.PaymentStatus
	switch outcome {
	case gateway.OutcomeApproved:
		target = models.PaymentApproved
	case gateway.OutcomePending:
		target = models.PaymentPending
	case gateway.OutcomeRejected:
		target = models.PaymentRejected
	}

	won, err := s.repo.TransitionStatus(ctx, payment.ID, models.PriorStatesFor(target), target, map[string]interface{}{
		"status_detail": resource.StatusDetail,
	})
	if err != nil {
		return err
	}
	if !won {
		s.logger.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"target":     target,
		}).Debug("Stale notification, transition skipped")
		return nil
	}

	switch target {
	case models.PaymentApproved:
		// Custody is confirmed asynchronously; mark the funds as escrowed.
		if _, escrowErr := s.repo.TransitionStatus(ctx, payment.ID, []models.PaymentStatus{models.PaymentApproved}, models.PaymentInEscrow, nil); escrowErr != nil {
			s.logger.WithError(escrowErr).WithField("payment_id", payment.ID).Error("Failed to mark payment in escrow")
		}
		current, lookupErr := s.repo.GetPayment(ctx, payment.ID)
		if lookupErr != nil {
			return lookupErr
		}
		s.dispatcher.PaymentApproved(ctx, current)
	case models.PaymentRejected:
		current, lookupErr := s.repo.GetPayment(ctx, payment.ID)
		if lookupErr != nil {
			return lookupErr
		}
		s.dispatcher.PaymentRejected(ctx, current)
	}
	return nil
}
