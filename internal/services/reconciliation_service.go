package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/repository"
)

const (
	sweepBatchSize   = 50
	eventMaxRetries  = 5
	sweepCallTimeout = 30 * time.Second
)

// ReconciliationService periodically resolves payments whose outcome is
// unknown: charges whose synchronous response was lost to a timeout, and
// notifications that failed mid-processing. It queries the processor by the
// idempotency key, which is exactly what makes a lost response recoverable.
type ReconciliationService struct {
	repo     repository.PaymentRepositoryInterface
	gateway  gateway.Gateway
	webhooks *WebhookService
	interval time.Duration
	cutoff   time.Duration
	logger   *logrus.Entry
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReconciliationService creates a new reconciliation service. cutoff is
// how long a payment may sit in created or pending before the sweep picks
// it up.
func NewReconciliationService(repo repository.PaymentRepositoryInterface, gw gateway.Gateway, webhooks *WebhookService, interval, cutoff time.Duration, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{
		repo:     repo,
		gateway:  gw,
		webhooks: webhooks,
		interval: interval,
		cutoff:   cutoff,
		logger:   logger.WithField("component", "reconciliation"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called
func (s *ReconciliationService) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.WithField("interval", s.interval).Info("Reconciliation sweep started")
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopCh:
				s.logger.Info("Reconciliation sweep stopped")
				return
			}
		}
	}()
}

// Stop stops the sweep loop and waits for the current pass to finish
func (s *ReconciliationService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Sweep runs one reconciliation pass
func (s *ReconciliationService) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepCallTimeout)
	defer cancel()

	s.sweepUnresolved(ctx)
	s.retryWebhookEvents(ctx)
}

func (s *ReconciliationService) sweepUnresolved(ctx context.Context) {
	payments, err := s.repo.ListUnresolvedPayments(ctx, time.Now().Add(-s.cutoff), sweepBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list unresolved payments")
		return
	}
	for i := range payments {
		if err := s.ResolvePayment(ctx, &payments[i]); err != nil {
			s.logger.WithError(err).WithField("payment_id", payments[i].ID).Warn("Payment still unresolved")
		}
	}
}

// ResolvePayment resolves one stuck payment by asking the processor what
// happened to its idempotency key. If the processor has a record, its
// authoritative state is applied exactly as a notification would be; if it
// has none the outcome stays ambiguous and a later pass retries.
func (s *ReconciliationService) ResolvePayment(ctx context.Context, payment *models.Payment) error {
	resource, err := s.gateway.FindPaymentByReference(ctx, payment.ExternalReference)
	if err != nil {
		return err
	}
	if resource == nil {
		return models.ErrReconciliationAmbiguous
	}
	return s.webhooks.ApplyResource(ctx, resource)
}

func (s *ReconciliationService) retryWebhookEvents(ctx context.Context) {
	events, err := s.repo.ListUnprocessedWebhookEvents(ctx, eventMaxRetries, sweepBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list unprocessed webhook events")
		return
	}
	for i := range events {
		if err := s.webhooks.RetryEvent(ctx, &events[i]); err != nil {
			s.logger.WithError(err).WithField("event_id", events[i].ID).Warn("Webhook event retry failed")
		}
	}
}
