package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"settlement-service/internal/models"
	"settlement-service/internal/repository"
)

// EscrowService is the single authority for moving funds out of custody
type EscrowService struct {
	repo       repository.PaymentRepositoryInterface
	dispatcher Dispatcher
	logger     *logrus.Entry
}

// NewEscrowService creates a new escrow service
func NewEscrowService(repo repository.PaymentRepositoryInterface, dispatcher Dispatcher, logger *logrus.Logger) *EscrowService {
	return &EscrowService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "escrow_service"),
	}
}

// ReleaseEscrow releases all in-custody legs of a source transaction to the
// counterparty. Both preconditions must hold: the work is completed and the
// payer has confirmed. The release itself is guarded so concurrent or
// repeated calls release each leg at most once; a repeat call reports
// released=false with the already-released legs.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, sourceType models.SourceType, sourceID string) (*models.ReleaseResult, error) {
	if !models.ValidSourceType(sourceType) {
		return nil, &models.ValidationError{Field: "sourceType", Message: fmt.Sprintf("unknown source type %q", sourceType)}
	}

	state, err := s.repo.GetSourceState(ctx, sourceType, sourceID)
	if err != nil {
		if errors.Is(err, models.ErrSourceStateNotFound) {
			return nil, &models.PreconditionNotMetError{Reason: models.ReasonWorkNotCompleted}
		}
		return nil, err
	}
	if !state.WorkCompleted {
		return nil, &models.PreconditionNotMetError{Reason: models.ReasonWorkNotCompleted}
	}
	if !state.Confirmed {
		return nil, &models.PreconditionNotMetError{Reason: models.ReasonNotConfirmed}
	}

	legs, err := s.repo.ListPaymentsBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}

	releasable := false
	for i := range legs {
		if legs[i].Status.InCustody() || legs[i].Status == models.PaymentReleased {
			releasable = true
		}
	}
	if !releasable {
		return nil, models.ErrPaymentNotFound
	}

	now := time.Now()
	releasedAny := false
	for i := range legs {
		if !legs[i].Status.InCustody() {
			continue
		}
		won, err := s.repo.ReleasePayment(ctx, legs[i].ID, now)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}
		releasedAny = true
		released, lookupErr := s.repo.GetPayment(ctx, legs[i].ID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		s.dispatcher.PaymentReleased(ctx, released)
	}

	final, err := s.repo.ListPaymentsBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	result := &models.ReleaseResult{
		Released:   releasedAny,
		SourceType: sourceType,
		SourceID:   sourceID,
	}
	if releasedAny {
		result.ReleasedAt = &now
	}
	for i := range final {
		result.Payments = append(result.Payments, models.NewPaymentResponse(&final[i], false))
		if !releasedAny && final[i].EscrowReleasedAt != nil {
			result.ReleasedAt = final[i].EscrowReleasedAt
		}
	}

	s.logger.WithFields(logrus.Fields{
		"source_type": sourceType,
		"source_id":   sourceID,
		"released":    releasedAny,
	}).Info("Escrow release processed")
	return result, nil
}

// Refund administratively refunds an in-custody payment. A reason is
// mandatory; refunding an already-refunded payment is a no-op returning the
// existing record.
func (s *EscrowService) Refund(ctx context.Context, paymentID uuid.UUID, reason string) (*models.PaymentResponse, error) {
	if reason == "" {
		return nil, &models.ValidationError{Field: "reason", Message: "a reason is required for refunds"}
	}

	won, err := s.repo.TransitionStatus(ctx, paymentID, models.CustodyStatuses, models.PaymentRefunded, map[string]interface{}{
		"status_reason": reason,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if won {
		s.dispatcher.PaymentRefunded(ctx, payment)
		return models.NewPaymentResponse(payment, false), nil
	}
	if payment.Status == models.PaymentRefunded {
		return models.NewPaymentResponse(payment, false), nil
	}
	return nil, &models.ValidationError{Field: "status", Message: fmt.Sprintf("cannot refund payment in status %s", payment.Status)}
}

// Cancel administratively cancels a payment that has not reached a terminal
// state. A reason is mandatory; cancelling an already-cancelled payment is a
// no-op returning the existing record.
func (s *EscrowService) Cancel(ctx context.Context, paymentID uuid.UUID, reason string) (*models.PaymentResponse, error) {
	if reason == "" {
		return nil, &models.ValidationError{Field: "reason", Message: "a reason is required for cancellations"}
	}

	nonTerminal := []models.PaymentStatus{models.PaymentCreated, models.PaymentPending, models.PaymentApproved, models.PaymentInEscrow}
	won, err := s.repo.TransitionStatus(ctx, paymentID, nonTerminal, models.PaymentCancelled, map[string]interface{}{
		"status_reason": reason,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if won {
		s.dispatcher.PaymentCancelled(ctx, payment)
		return models.NewPaymentResponse(payment, false), nil
	}
	if payment.Status == models.PaymentCancelled {
		return models.NewPaymentResponse(payment, false), nil
	}
	return nil, &models.ValidationError{Field: "status", Message: fmt.Sprintf("cannot cancel payment in status %s", payment.Status)}
}

// MarkWorkCompleted records the work-completed precondition for a source
// transaction
func (s *EscrowService) MarkWorkCompleted(ctx context.Context, sourceType models.SourceType, sourceID string) (*models.SourceState, error) {
	if !models.ValidSourceType(sourceType) {
		return nil, &models.ValidationError{Field: "sourceType", Message: fmt.Sprintf("unknown source type %q", sourceType)}
	}
	return s.repo.MarkWorkCompleted(ctx, sourceType, sourceID, time.Now())
}

// MarkConfirmed records the payer-confirmation precondition for a source
// transaction
func (s *EscrowService) MarkConfirmed(ctx context.Context, sourceType models.SourceType, sourceID string) (*models.SourceState, error) {
	if !models.ValidSourceType(sourceType) {
		return nil, &models.ValidationError{Field: "sourceType", Message: fmt.Sprintf("unknown source type %q", sourceType)}
	}
	return s.repo.MarkConfirmed(ctx, sourceType, sourceID, time.Now())
}
