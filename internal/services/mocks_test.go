package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/repository"
)

// MockPaymentRepository is a mock implementation of PaymentRepositoryInterface
type MockPaymentRepository struct {
	mock.Mock
}

var _ repository.PaymentRepositoryInterface = (*MockPaymentRepository)(nil)

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetPaymentByExternalReference(ctx context.Context, externalReference string) (*models.Payment, error) {
	args := m.Called(ctx, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListPaymentsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) ([]models.Payment, error) {
	args := m.Called(ctx, sourceType, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateGatewayPaymentID(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID string) error {
	args := m.Called(ctx, paymentID, gatewayPaymentID)
	return args.Error(0)
}

func (m *MockPaymentRepository) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	args := m.Called(ctx, paymentID, from, to, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) ReleasePayment(ctx context.Context, paymentID uuid.UUID, releasedAt time.Time) (bool, error) {
	args := m.Called(ctx, paymentID, releasedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) ListUnresolvedPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) CounterpartyBalance(ctx context.Context, counterpartyID string) (int64, int64, error) {
	args := m.Called(ctx, counterpartyID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) CreateCommissionEntry(ctx context.Context, entry *models.CommissionEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockPaymentRepository) CommissionSummary(ctx context.Context) (map[models.CommissionEntryType]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.CommissionEntryType]int64), args.Error(1)
}

func (m *MockPaymentRepository) GetSourceState(ctx context.Context, sourceType models.SourceType, sourceID string) (*models.SourceState, error) {
	args := m.Called(ctx, sourceType, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SourceState), args.Error(1)
}

func (m *MockPaymentRepository) MarkWorkCompleted(ctx context.Context, sourceType models.SourceType, sourceID string, at time.Time) (*models.SourceState, error) {
	args := m.Called(ctx, sourceType, sourceID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SourceState), args.Error(1)
}

func (m *MockPaymentRepository) MarkConfirmed(ctx context.Context, sourceType models.SourceType, sourceID string, at time.Time) (*models.SourceState, error) {
	args := m.Called(ctx, sourceType, sourceID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SourceState), args.Error(1)
}

func (m *MockPaymentRepository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPaymentRepository) UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListUnprocessedWebhookEvents(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error) {
	args := m.Called(ctx, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WebhookEvent), args.Error(1)
}

// MockGateway is a mock implementation of the processor gateway
type MockGateway struct {
	mock.Mock
}

var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) CreateCharge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*gateway.PaymentResource, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResource), args.Error(1)
}

func (m *MockGateway) GetMerchantOrder(ctx context.Context, orderID string) (*gateway.MerchantOrderResource, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.MerchantOrderResource), args.Error(1)
}

func (m *MockGateway) FindPaymentByReference(ctx context.Context, externalReference string) (*gateway.PaymentResource, error) {
	args := m.Called(ctx, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResource), args.Error(1)
}

// MockDispatcher is a mock implementation of the side-effect dispatcher
type MockDispatcher struct {
	mock.Mock
}

var _ Dispatcher = (*MockDispatcher)(nil)

func (m *MockDispatcher) PaymentApproved(ctx context.Context, payment *models.Payment) {
	m.Called(ctx, payment)
}

func (m *MockDispatcher) PaymentRejected(ctx context.Context, payment *models.Payment) {
	m.Called(ctx, payment)
}

func (m *MockDispatcher) PaymentReleased(ctx context.Context, payment *models.Payment) {
	m.Called(ctx, payment)
}

func (m *MockDispatcher) PaymentRefunded(ctx context.Context, payment *models.Payment) {
	m.Called(ctx, payment)
}

func (m *MockDispatcher) PaymentCancelled(ctx context.Context, payment *models.Payment) {
	m.Called(ctx, payment)
}
