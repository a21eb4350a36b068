package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"settlement-service/internal/models"
)

// PaymentRepositoryInterface defines settlement record store operations
type PaymentRepositoryInterface interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	GetPaymentByExternalReference(ctx context.Context, externalReference string) (*models.Payment, error)
	ListPaymentsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) ([]models.Payment, error)
	UpdateGatewayPaymentID(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID string) error
	TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus, updates map[string]interface{}) (bool, error)
	ReleasePayment(ctx context.Context, paymentID uuid.UUID, releasedAt time.Time) (bool, error)
	ListUnresolvedPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)

	CounterpartyBalance(ctx context.Context, counterpartyID string) (available int64, pending int64, err error)
	CreateCommissionEntry(ctx context.Context, entry *models.CommissionEntry) error
	CommissionSummary(ctx context.Context) (map[models.CommissionEntryType]int64, error)

	GetSourceState(ctx context.Context, sourceType models.SourceType, sourceID string) (*models.SourceState, error)
	MarkWorkCompleted(ctx context.Context, sourceType models.SourceType, sourceID string, at time.Time) (*models.SourceState, error)
	MarkConfirmed(ctx context.Context, sourceType models.SourceType, sourceID string, at time.Time) (*models.SourceState, error)

	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	ListUnprocessedWebhookEvents(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error)
}

// PaymentRepository handles settlement record persistence
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment inserts a new settlement leg. A unique violation on the
// external reference means the same leg was already submitted; callers treat
// that as success against the existing row.
func (r *PaymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDuplicateSubmission
		}
		return err
	}
	return nil
}

// GetPayment gets a payment by ID
func (r *PaymentRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByGatewayID gets a payment by the processor's payment id
func (r *PaymentRepository) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByExternalReference gets a payment by its idempotency key
func (r *PaymentRepository) GetPaymentByExternalReference(ctx context.Context, externalReference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("external_reference = ?", externalReference).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// ListPaymentsBySource lists all settlement legs for a source transaction,
// ordered by leg index
func (r *PaymentRepository) ListPaymentsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("leg_index ASC, created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// UpdateGatewayPaymentID records the processor's payment id on a settlement leg
func (r *PaymentRepository) UpdateGatewayPaymentID(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"gateway_payment_id": gatewayPaymentID,
			"updated_at":         time.Now(),
		}).Error
}

// TransitionStatus applies a guarded status transition as a single conditional
// update. It returns false with no error when the guard does not match, which
// callers treat as a stale or duplicate application to skip.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", paymentID, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleasePayment moves a payment out of custody and records the release
// commission entry in the same transaction. The guard on escrow_released_at
// makes the release at-most-once even under concurrent callers; the loser
// gets false with no error.
func (r *PaymentRepository) ReleasePayment(ctx context.Context, paymentID uuid.UUID, releasedAt time.Time) (bool, error) {
	released := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrPaymentNotFound
			}
			return err
		}

		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ? AND escrow_released_at IS NULL", paymentID, models.CustodyStatuses).
			Updates(map[string]interface{}{
				"status":             models.PaymentReleased,
				"escrow_released_at": releasedAt,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		entry := &models.CommissionEntry{
			PaymentID: payment.ID,
			EntryType: models.CommissionRelease,
			Amount:    payment.CommissionAmount,
			Currency:  payment.Currency,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// ListUnresolvedPayments lists payments still in created or pending past the
// cutoff, for the reconciliation sweep
func (r *PaymentRepository) ListUnresolvedPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []models.PaymentStatus{models.PaymentCreated, models.PaymentPending}, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// CounterpartyBalance derives a counterparty's balance from the payments
// table. Available is the sum of released legs; pending is the sum of legs
// still in custody.
func (r *PaymentRepository) CounterpartyBalance(ctx context.Context, counterpartyID string) (int64, int64, error) {
	var available, pending int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("counterparty_id = ? AND status = ?", counterpartyID, models.PaymentReleased).
		Select("COALESCE(SUM(counterparty_amount), 0)").
		Scan(&available).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("counterparty_id = ? AND status IN ?", counterpartyID, models.CustodyStatuses).
		Select("COALESCE(SUM(counterparty_amount), 0)").
		Scan(&pending).Error
	if err != nil {
		return 0, 0, err
	}
	return available, pending, nil
}

// CreateCommissionEntry appends a commission ledger entry
func (r *PaymentRepository) CreateCommissionEntry(ctx context.Context, entry *models.CommissionEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CommissionSummary aggregates the commission ledger by entry type
func (r *PaymentRepository) CommissionSummary(ctx context.Context) (map[models.CommissionEntryType]int64, error) {
	var rows []struct {
		EntryType models.CommissionEntryType
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&models.CommissionEntry{}).
		Select("entry_type, COALESCE(SUM(amount), 0) AS total").
		Group("entry_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	summary := make(map[models.CommissionEntryType]int64, len(rows))
	for _, row := range rows {
		summary[row.EntryType] = row.Total
	}
	return summary, nil
}

// GetSourceState gets the release precondition state for a source transaction
func (r *PaymentRepository) GetSourceState(ctx context.Context, sourceType models.SourceType, sourceID string) (*models.SourceState, error) {
	var state models.SourceState
	err := r.db.WithContext(ctx).Where("source_type = ? AND source_id = ?", sourceType, sourceID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSourceStateNotFound
		}
		return nil, err
	}
	return &state, nil
}

// MarkWorkCompleted records that work for the source transaction is done.
// Creates the state row if it does not exist; repeat calls are harmless.
func (r *PaymentRepository) MarkWorkCompleted(ctx context.Context, sourceType models.SourceType, sourceID string, at time.Time) (*models.SourceState, error) {
	return r.upsertSourceState(ctx, sourceType, sourceID, func(state *models.SourceState) {
		if !state.WorkCompleted {
			state.WorkCompleted = true
			state.WorkCompletedAt = &at
		}
	})
}

// MarkConfirmed records the payer's confirmation for the source transaction
func (r *PaymentRepository) MarkConfirmed(ctx context.Context, sourceType models.SourceType, sourceID string, at time.Time) (*models.SourceState, error) {
	return r.upsertSourceState(ctx, sourceType, sourceID, func(state *models.SourceState) {
		if !state.Confirmed {
			state.Confirmed = true
			state.ConfirmedAt = &at
		}
	})
}

func (r *PaymentRepository) upsertSourceState(ctx context.Context, sourceType models.SourceType, sourceID string, apply func(*models.SourceState)) (*models.SourceState, error) {
	var state models.SourceState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("source_type = ? AND source_id = ?", sourceType, sourceID).First(&state).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = models.SourceState{SourceType: sourceType, SourceID: sourceID}
			apply(&state)
			return tx.Create(&state).Error
		}
		if err != nil {
			return err
		}
		apply(&state)
		state.UpdatedAt = time.Now()
		return tx.Save(&state).Error
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// CreateWebhookEvent creates a new webhook event
func (r *PaymentRepository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// UpdateWebhookEvent updates a webhook event
func (r *PaymentRepository) UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// ListUnprocessedWebhookEvents lists unprocessed webhook events below the
// retry ceiling
func (r *PaymentRepository) ListUnprocessedWebhookEvents(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = false AND retry_count < ?", maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
