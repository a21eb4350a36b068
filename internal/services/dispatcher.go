package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"settlement-service/internal/clients"
	"settlement-service/internal/events"
	"settlement-service/internal/models"
	"settlement-service/internal/repository"
)

// Dispatcher fans out the side effects of a settlement transition. Callers
// invoke it only after winning the status transition, which makes each hook
// fire at most once per payment per transition.
type Dispatcher interface {
	PaymentApproved(ctx context.Context, payment *models.Payment)
	PaymentRejected(ctx context.Context, payment *models.Payment)
	PaymentReleased(ctx context.Context, payment *models.Payment)
	PaymentRefunded(ctx context.Context, payment *models.Payment)
	PaymentCancelled(ctx context.Context, payment *models.Payment)
}

// SideEffectDispatcher dispatches notifications, events, and commission
// ledger entries. Notification and event failures are logged, never
// propagated: settlement state is already committed when these run.
type SideEffectDispatcher struct {
	repo          repository.PaymentRepositoryInterface
	notifications *clients.NotificationClient
	publisher     *events.Publisher
	logger        *logrus.Entry
}

// NewSideEffectDispatcher creates a new side-effect dispatcher. The publisher
// may be nil when NATS is not configured.
func NewSideEffectDispatcher(repo repository.PaymentRepositoryInterface, notifications *clients.NotificationClient, publisher *events.Publisher, logger *logrus.Logger) *SideEffectDispatcher {
	return &SideEffectDispatcher{
		repo:          repo,
		notifications: notifications,
		publisher:     publisher,
		logger:        logger.WithField("component", "dispatcher"),
	}
}

// PaymentApproved records the collection commission entry and notifies both
// parties. The ledger write is synchronous so the commission row lands before
// the request returns; a failure is logged and retried by reconciliation of
// the ledger against approved payments.
func (d *SideEffectDispatcher) PaymentApproved(ctx context.Context, payment *models.Payment) {
	entry := &models.CommissionEntry{
		PaymentID: payment.ID,
		EntryType: models.CommissionCollection,
		Amount:    payment.CommissionAmount,
		Currency:  payment.Currency,
	}
	if err := d.repo.CreateCommissionEntry(ctx, entry); err != nil {
		d.logger.WithError(err).WithField("payment_id", payment.ID).Error("Failed to record collection commission entry")
	}

	d.publish(events.SubjectPaymentApproved, payment)
	d.notify(payment.PayerID, "payment_approved", "Payment approved",
		fmt.Sprintf("Your payment of %d %s was approved and is held in escrow", payment.GrossAmount, payment.Currency), payment)
	d.notify(payment.CounterpartyID, "payment_received", "Payment received",
		fmt.Sprintf("A payment of %d %s is in escrow for %s %s", payment.GrossAmount, payment.Currency, payment.SourceType, payment.SourceID), payment)
}

// PaymentRejected notifies the payer that the charge was declined
func (d *SideEffectDispatcher) PaymentRejected(ctx context.Context, payment *models.Payment) {
	d.publish(events.SubjectPaymentRejected, payment)
	d.notify(payment.PayerID, "payment_rejected", "Payment declined",
		fmt.Sprintf("Your payment for %s %s was declined: %s", payment.SourceType, payment.SourceID, payment.StatusDetail), payment)
}

// PaymentReleased notifies the counterparty that funds are available
func (d *SideEffectDispatcher) PaymentReleased(ctx context.Context, payment *models.Payment) {
	d.publish(events.SubjectPaymentReleased, payment)
	d.notify(payment.CounterpartyID, "escrow_released", "Funds released",
		fmt.Sprintf("%d %s from %s %s has been released to your balance", payment.CounterpartyAmount, payment.Currency, payment.SourceType, payment.SourceID), payment)
}

// PaymentRefunded records the commission refund entry and notifies both parties
func (d *SideEffectDispatcher) PaymentRefunded(ctx context.Context, payment *models.Payment) {
	entry := &models.CommissionEntry{
		PaymentID: payment.ID,
		EntryType: models.CommissionRefund,
		Amount:    payment.CommissionAmount,
		Currency:  payment.Currency,
	}
	if err := d.repo.CreateCommissionEntry(ctx, entry); err != nil {
		d.logger.WithError(err).WithField("payment_id", payment.ID).Error("Failed to record refund commission entry")
	}

	d.publish(events.SubjectPaymentRefunded, payment)
	d.notify(payment.PayerID, "payment_refunded", "Payment refunded",
		fmt.Sprintf("Your payment of %d %s was refunded: %s", payment.GrossAmount, payment.Currency, payment.StatusReason), payment)
	d.notify(payment.CounterpartyID, "payment_refunded", "Payment refunded",
		fmt.Sprintf("The payment for %s %s was refunded", payment.SourceType, payment.SourceID), payment)
}

// PaymentCancelled notifies the payer of the cancellation
func (d *SideEffectDispatcher) PaymentCancelled(ctx context.Context, payment *models.Payment) {
	d.publish(events.SubjectPaymentCancelled, payment)
	d.notify(payment.PayerID, "payment_cancelled", "Payment cancelled",
		fmt.Sprintf("Your payment for %s %s was cancelled: %s", payment.SourceType, payment.SourceID, payment.StatusReason), payment)
}

func (d *SideEffectDispatcher) publish(subject string, payment *models.Payment) {
	if d.publisher == nil {
		return
	}
	event := &events.PaymentEvent{
		PaymentID:          payment.ID.String(),
		SourceType:         string(payment.SourceType),
		SourceID:           payment.SourceID,
		Status:             string(payment.Status),
		GrossAmount:        payment.GrossAmount,
		CounterpartyAmount: payment.CounterpartyAmount,
		CounterpartyID:     payment.CounterpartyID,
		Currency:           payment.Currency,
	}
	go func() {
		if err := d.publisher.Publish(subject, event); err != nil {
			d.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
		}
	}()
}

func (d *SideEffectDispatcher) notify(userID, notifType, title, message string, payment *models.Payment) {
	if d.notifications == nil || userID == "" {
		return
	}
	metadata := map[string]interface{}{
		"paymentId":  payment.ID.String(),
		"sourceType": payment.SourceType,
		"sourceId":   payment.SourceID,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.notifications.Notify(ctx, userID, notifType, title, message, metadata); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"type":    notifType,
			}).Warn("Failed to send notification")
		}
	}()
}
