package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/repository"
)

// PaymentService orchestrates settlement payment creation against the
// payment processor
type PaymentService struct {
	repo       repository.PaymentRepositoryInterface
	gateway    gateway.Gateway
	dispatcher Dispatcher
	policy     *CommissionPolicy
	logger     *logrus.Entry
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo repository.PaymentRepositoryInterface, gw gateway.Gateway, dispatcher Dispatcher, policy *CommissionPolicy, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		repo:       repo,
		gateway:    gw,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     logger.WithField("component", "payment_service"),
	}
}

// CreatePayment creates one settlement leg for a source transaction and
// submits its charge to the processor. Resubmissions of an in-flight or
// settled leg return the existing record instead of charging again.
func (s *PaymentService) CreatePayment(ctx context.Context, req *models.CreatePaymentRequest) (*models.PaymentResponse, error) {
	if !models.ValidSourceType(req.SourceType) {
		return nil, &models.ValidationError{Field: "sourceType", Message: fmt.Sprintf("unknown source type %q", req.SourceType)}
	}
	percentage := req.PaymentPercentage
	if percentage == 0 {
		percentage = 100
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	rateBps := s.policy.RateFor(req.SourceType)

	legIndex, legGross, legPercentage, existing, err := s.deriveLeg(ctx, req, percentage)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.WithFields(logrus.Fields{
			"source_type": req.SourceType,
			"source_id":   req.SourceID,
			"payment_id":  existing.ID,
		}).Info("Duplicate submission, returning existing payment")
		return models.NewPaymentResponse(existing, true), nil
	}

	breakdown, err := CalculateAmounts(legGross, legPercentage, rateBps)
	if err != nil {
		return nil, err
	}

	key := DeriveIdempotencyKey(req.SourceType, req.SourceID, legIndex)

	payment := &models.Payment{
		SourceType:         req.SourceType,
		SourceID:           req.SourceID,
		LegIndex:           legIndex,
		GrossAmount:        breakdown.LegAmount,
		CommissionAmount:   breakdown.CommissionAmount,
		CounterpartyAmount: breakdown.CounterpartyAmount,
		RemainingAmount:    breakdown.RemainingAmount,
		PaymentPercentage:  percentage,
		CommissionRateBps:  rateBps,
		Currency:           currency,
		Status:             models.PaymentCreated,
		ExternalReference:  key,
		PayerID:            req.PayerID,
		PayerEmail:         req.PayerEmail,
		CounterpartyID:     req.CounterpartyID,
		Metadata:           models.JSONB(req.Metadata),
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, models.ErrDuplicateSubmission) {
			dup, lookupErr := s.repo.GetPaymentByExternalReference(ctx, key)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return models.NewPaymentResponse(dup, true), nil
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	result, err := s.gateway.CreateCharge(ctx, &gateway.ChargeRequest{
		Amount:            payment.GrossAmount,
		Currency:          currency,
		ExternalReference: key,
		IdempotencyKey:    key,
		Token:             req.CardToken,
		Installments:      req.Installments,
		PayerID:           req.PayerID,
		PayerEmail:        req.PayerEmail,
		PayerName:         req.PayerName,
		Description:       fmt.Sprintf("%s %s settlement", req.SourceType, req.SourceID),
		Metadata:          req.Metadata,
	})
	if err != nil {
		return s.handleChargeError(ctx, payment, err)
	}

	if err := s.repo.UpdateGatewayPaymentID(ctx, payment.ID, result.GatewayPaymentID); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("Failed to record gateway payment id")
	}

	if err := s.applyOutcome(ctx, payment.ID, result.Status, result.StatusDetail); err != nil {
		return nil, err
	}

	final, err := s.repo.GetPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	return models.NewPaymentResponse(final, false), nil
}

// deriveLeg inspects the existing legs of the source transaction and decides
// what this submission means: the first leg, the deferred second leg of a
// partial plan, a retry after a rejected leg, or a duplicate of an existing
// one. A retry after rejection gets a fresh leg index, which gives it a fresh
// idempotency key the processor has not seen.
func (s *PaymentService) deriveLeg(ctx context.Context, req *models.CreatePaymentRequest, percentage int) (legIndex int, legGross int64, legPercentage int, existing *models.Payment, err error) {
	legs, err := s.repo.ListPaymentsBySource(ctx, req.SourceType, req.SourceID)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if len(legs) == 0 {
		return 0, req.GrossAmount, percentage, nil, nil
	}

	latest := &legs[len(legs)-1]
	switch {
	case latest.Status == models.PaymentCreated || latest.Status == models.PaymentPending:
		return 0, 0, 0, latest, nil
	case latest.Status == models.PaymentRejected || latest.Status == models.PaymentCancelled:
		return latest.LegIndex + 1, req.GrossAmount, percentage, nil, nil
	case latest.RemainingAmount > 0:
		// Deferred second leg of a 50% plan; charge exactly the remainder.
		return latest.LegIndex + 1, latest.RemainingAmount, 100, nil, nil
	default:
		return 0, 0, 0, latest, nil
	}
}

// handleChargeError resolves a failed charge submission. Retryable failures
// (network, processor 5xx, timeout) leave the record in created for the
// reconciliation sweep, since the processor may have accepted the charge
// before the failure. Definitive declines move the record to rejected.
func (s *PaymentService) handleChargeError(ctx context.Context, payment *models.Payment, chargeErr error) (*models.PaymentResponse, error) {
	var gwErr *gateway.GatewayError
	if !errors.As(chargeErr, &gwErr) {
		return nil, fmt.Errorf("charge submission failed: %w", chargeErr)
	}

	if gwErr.Retryable {
		s.logger.WithError(gwErr).WithField("payment_id", payment.ID).Warn("Gateway unavailable, leaving payment for reconciliation")
		return nil, gwErr
	}

	won, err := s.repo.TransitionStatus(ctx, payment.ID, models.PriorStatesFor(models.PaymentRejected), models.PaymentRejected, map[string]interface{}{
		"status_detail": gwErr.Message,
	})
	if err != nil {
		return nil, err
	}
	if won {
		if rejected, lookupErr := s.repo.GetPayment(ctx, payment.ID); lookupErr == nil {
			s.dispatcher.PaymentRejected(ctx, rejected)
		}
	}
	return nil, gwErr
}

// applyOutcome applies a synchronous charge outcome through the guarded
// transition and runs side effects only when this call won the transition
func (s *PaymentService) applyOutcome(ctx context.Context, paymentID uuid.UUID, outcome gateway.OutcomeStatus, detail string) error {
	var target models.PaymentStatus
	switch outcome {
	case gateway.OutcomeApproved:
		target = models.PaymentApproved
	case gateway.OutcomePending:
		target = models.PaymentPending
	case gateway.OutcomeRejected:
		target = models.PaymentRejected
	default:
		return fmt.Errorf("unknown charge outcome %q", outcome)
	}

	updates := map[string]interface{}{"status_detail": detail}
	won, err := s.repo.TransitionStatus(ctx, paymentID, models.PriorStatesFor(target), target, updates)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	switch target {
	case models.PaymentApproved:
		s.dispatcher.PaymentApproved(ctx, payment)
	case models.PaymentRejected:
		s.dispatcher.PaymentRejected(ctx, payment)
	}
	return nil
}

// GetPayment gets a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.PaymentResponse, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return models.NewPaymentResponse(payment, false), nil
}

// ListPaymentsBySource lists all settlement legs for a source transaction
func (s *PaymentService) ListPaymentsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) ([]*models.PaymentResponse, error) {
	if !models.ValidSourceType(sourceType) {
		return nil, &models.ValidationError{Field: "sourceType", Message: fmt.Sprintf("unknown source type %q", sourceType)}
	}
	legs, err := s.repo.ListPaymentsBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	responses := make([]*models.PaymentResponse, 0, len(legs))
	for i := range legs {
		responses = append(responses, models.NewPaymentResponse(&legs[i], false))
	}
	return responses, nil
}

// CounterpartyBalance derives a counterparty's balance from released and
// in-custody legs
func (s *PaymentService) CounterpartyBalance(ctx context.Context, counterpartyID string) (*models.BalanceResponse, error) {
	available, pending, err := s.repo.CounterpartyBalance(ctx, counterpartyID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{
		CounterpartyID:  counterpartyID,
		AvailableAmount: available,
		PendingAmount:   pending,
		Currency:        "USD",
	}, nil
}

// CommissionSummary aggregates platform commission revenue from the ledger
func (s *PaymentService) CommissionSummary(ctx context.Context) (*models.CommissionSummaryResponse, error) {
	summary, err := s.repo.CommissionSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &models.CommissionSummaryResponse{
		CollectedAmount: summary[models.CommissionCollection],
		ReleasedAmount:  summary[models.CommissionRelease],
		RefundedAmount:  summary[models.CommissionRefund],
		Currency:        "USD",
	}, nil
}
