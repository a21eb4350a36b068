package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusIsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentRejected, PaymentReleased, PaymentRefunded, PaymentCancelled}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "%s should be terminal", status)
	}

	open := []PaymentStatus{PaymentCreated, PaymentPending, PaymentApproved, PaymentInEscrow}
	for _, status := range open {
		assert.False(t, status.IsTerminal(), "%s should not be terminal", status)
	}
}

func TestPaymentStatusInCustody(t *testing.T) {
	assert.True(t, PaymentApproved.InCustody())
	assert.True(t, PaymentInEscrow.InCustody())
	assert.False(t, PaymentCreated.InCustody())
	assert.False(t, PaymentReleased.InCustody())
}

func TestPriorStatesFor(t *testing.T) {
	assert.Equal(t, []PaymentStatus{PaymentCreated}, PriorStatesFor(PaymentPending))
	assert.Equal(t, []PaymentStatus{PaymentCreated, PaymentPending}, PriorStatesFor(PaymentApproved))
	assert.Equal(t, []PaymentStatus{PaymentCreated, PaymentPending}, PriorStatesFor(PaymentRejected))

	// Release, refund, and cancel guards are owned by the escrow authority,
	// not the gateway-driven transitions.
	assert.Nil(t, PriorStatesFor(PaymentReleased))
	assert.Nil(t, PriorStatesFor(PaymentRefunded))
}

func TestValidSourceType(t *testing.T) {
	assert.True(t, ValidSourceType(SourceBooking))
	assert.True(t, ValidSourceType(SourceContract))
	assert.True(t, ValidSourceType(SourceMarketplaceOrder))
	assert.False(t, ValidSourceType("SUBSCRIPTION"))
	assert.False(t, ValidSourceType(""))
}
