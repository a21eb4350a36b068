package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"settlement-service/internal/models"
)

func newTestEscrowService(repo *MockPaymentRepository, dispatcher *MockDispatcher) *EscrowService {
	return NewEscrowService(repo, dispatcher, testLogger())
}

func readyState() *models.SourceState {
	now := time.Now()
	return &models.SourceState{
		SourceType:      models.SourceBooking,
		SourceID:        "booking-1",
		WorkCompleted:   true,
		WorkCompletedAt: &now,
		Confirmed:       true,
		ConfirmedAt:     &now,
	}
}

func TestReleaseEscrow_ReleasesCustodyLegs(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	legID := uuid.New()
	inCustody := models.Payment{ID: legID, Status: models.PaymentInEscrow, CounterpartyAmount: 950}

	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(readyState(), nil)
	repo.On("ListPaymentsBySource", mock.Anything, models.SourceBooking, "booking-1").Return([]models.Payment{inCustody}, nil).Once()
	repo.On("ReleasePayment", mock.Anything, legID, mock.Anything).Return(true, nil)
	releasedAt := time.Now()
	released := models.Payment{ID: legID, Status: models.PaymentReleased, CounterpartyAmount: 950, EscrowReleasedAt: &releasedAt}
	repo.On("GetPayment", mock.Anything, legID).Return(&released, nil)
	repo.On("ListPaymentsBySource", mock.Anything, models.SourceBooking, "booking-1").Return([]models.Payment{released}, nil)
	dispatcher.On("PaymentReleased", mock.Anything, &released).Return()

	result, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	assert.NoError(t, err)
	assert.True(t, result.Released)
	assert.NotNil(t, result.ReleasedAt)
	dispatcher.AssertNumberOfCalls(t, "PaymentReleased", 1)
}

func TestReleaseEscrow_WorkNotCompleted(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	state := readyState()
	state.WorkCompleted = false
	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(state, nil)

	_, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	var preconditionErr *models.PreconditionNotMetError
	assert.ErrorAs(t, err, &preconditionErr)
	assert.Equal(t, models.ReasonWorkNotCompleted, preconditionErr.Reason)
	repo.AssertNotCalled(t, "ReleasePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestReleaseEscrow_NotConfirmed(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	state := readyState()
	state.Confirmed = false
	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(state, nil)

	_, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	var preconditionErr *models.PreconditionNotMetError
	assert.ErrorAs(t, err, &preconditionErr)
	assert.Equal(t, models.ReasonNotConfirmed, preconditionErr.Reason)
}

func TestReleaseEscrow_NoStateMeansWorkNotCompleted(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(nil, models.ErrSourceStateNotFound)

	_, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	var preconditionErr *models.PreconditionNotMetError
	assert.ErrorAs(t, err, &preconditionErr)
	assert.Equal(t, models.ReasonWorkNotCompleted, preconditionErr.Reason)
}

func TestReleaseEscrow_RepeatReleaseIsNoOp(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	releasedAt := time.Now().Add(-time.Hour)
	alreadyReleased := models.Payment{ID: uuid.New(), Status: models.PaymentReleased, EscrowReleasedAt: &releasedAt}

	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(readyState(), nil)
	repo.On("ListPaymentsBySource", mock.Anything, models.SourceBooking, "booking-1").Return([]models.Payment{alreadyReleased}, nil)

	result, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	assert.NoError(t, err)
	assert.False(t, result.Released)
	assert.NotNil(t, result.ReleasedAt)
	assert.Equal(t, releasedAt.Unix(), result.ReleasedAt.Unix())
	repo.AssertNotCalled(t, "ReleasePayment", mock.Anything, mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "PaymentReleased", mock.Anything, mock.Anything)
}

func TestReleaseEscrow_ConcurrentLoserDoesNotDispatch(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	legID := uuid.New()
	inCustody := models.Payment{ID: legID, Status: models.PaymentApproved}
	releasedAt := time.Now()
	released := models.Payment{ID: legID, Status: models.PaymentReleased, EscrowReleasedAt: &releasedAt}

	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(readyState(), nil)
	repo.On("ListPaymentsBySource", mock.Anything, models.SourceBooking, "booking-1").Return([]models.Payment{inCustody}, nil).Once()
	// Another caller won the guarded update between the read and the release.
	repo.On("ReleasePayment", mock.Anything, legID, mock.Anything).Return(false, nil)
	repo.On("ListPaymentsBySource", mock.Anything, models.SourceBooking, "booking-1").Return([]models.Payment{released}, nil)

	result, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	assert.NoError(t, err)
	assert.False(t, result.Released)
	dispatcher.AssertNotCalled(t, "PaymentReleased", mock.Anything, mock.Anything)
}

func TestReleaseEscrow_NoPayments(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	repo.On("GetSourceState", mock.Anything, models.SourceBooking, "booking-1").Return(readyState(), nil)
	repo.On("ListPaymentsBySource", mock.Anything, models.SourceBooking, "booking-1").Return([]models.Payment{}, nil)

	_, err := service.ReleaseEscrow(context.Background(), models.SourceBooking, "booking-1")

	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
}

func TestRefund_RequiresReason(t *testing.T) {
	service := newTestEscrowService(new(MockPaymentRepository), new(MockDispatcher))

	_, err := service.Refund(context.Background(), uuid.New(), "")

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "reason", validationErr.Field)
}

func TestRefund_DispatchesOnWin(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	paymentID := uuid.New()
	refunded := &models.Payment{ID: paymentID, Status: models.PaymentRefunded, StatusReason: "dispute resolved for payer"}
	repo.On("TransitionStatus", mock.Anything, paymentID, models.CustodyStatuses, models.PaymentRefunded, mock.Anything).Return(true, nil)
	repo.On("GetPayment", mock.Anything, paymentID).Return(refunded, nil)
	dispatcher.On("PaymentRefunded", mock.Anything, refunded).Return()

	resp, err := service.Refund(context.Background(), paymentID, "dispute resolved for payer")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, resp.Status)
	dispatcher.AssertNumberOfCalls(t, "PaymentRefunded", 1)
}

func TestRefund_AlreadyRefundedIsNoOp(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	paymentID := uuid.New()
	refunded := &models.Payment{ID: paymentID, Status: models.PaymentRefunded}
	repo.On("TransitionStatus", mock.Anything, paymentID, models.CustodyStatuses, models.PaymentRefunded, mock.Anything).Return(false, nil)
	repo.On("GetPayment", mock.Anything, paymentID).Return(refunded, nil)

	resp, err := service.Refund(context.Background(), paymentID, "duplicate request")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, resp.Status)
	dispatcher.AssertNotCalled(t, "PaymentRefunded", mock.Anything, mock.Anything)
}

func TestRefund_ReleasedPaymentCannotBeRefunded(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	paymentID := uuid.New()
	released := &models.Payment{ID: paymentID, Status: models.PaymentReleased}
	repo.On("TransitionStatus", mock.Anything, paymentID, models.CustodyStatuses, models.PaymentRefunded, mock.Anything).Return(false, nil)
	repo.On("GetPayment", mock.Anything, paymentID).Return(released, nil)

	_, err := service.Refund(context.Background(), paymentID, "too late")

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestCancel_NonTerminalOnly(t *testing.T) {
	repo := new(MockPaymentRepository)
	dispatcher := new(MockDispatcher)
	service := newTestEscrowService(repo, dispatcher)

	paymentID := uuid.New()
	cancelled := &models.Payment{ID: paymentID, Status: models.PaymentCancelled, StatusReason: "payer requested"}
	repo.On("TransitionStatus", mock.Anything, paymentID,
		[]models.PaymentStatus{models.PaymentCreated, models.PaymentPending, models.PaymentApproved, models.PaymentInEscrow},
		models.PaymentCancelled, mock.Anything).Return(true, nil)
	repo.On("GetPayment", mock.Anything, paymentID).Return(cancelled, nil)
	dispatcher.On("PaymentCancelled", mock.Anything, cancelled).Return()

	resp, err := service.Cancel(context.Background(), paymentID, "payer requested")

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentCancelled, resp.Status)
	dispatcher.AssertNumberOfCalls(t, "PaymentCancelled", 1)
}
