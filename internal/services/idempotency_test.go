package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"settlement-service/internal/models"
)

func TestDeriveIdempotencyKey_IsStable(t *testing.T) {
	first := DeriveIdempotencyKey(models.SourceBooking, "booking-123", 0)
	second := DeriveIdempotencyKey(models.SourceBooking, "booking-123", 0)

	assert.Equal(t, first, second)
	assert.Equal(t, "settle-booking-booking-123-0", first)
}

func TestDeriveIdempotencyKey_DistinctAcrossLegs(t *testing.T) {
	leg0 := DeriveIdempotencyKey(models.SourceContract, "contract-9", 0)
	leg1 := DeriveIdempotencyKey(models.SourceContract, "contract-9", 1)

	assert.NotEqual(t, leg0, leg1)
}

func TestDeriveIdempotencyKey_DistinctAcrossSourceTypes(t *testing.T) {
	booking := DeriveIdempotencyKey(models.SourceBooking, "42", 0)
	order := DeriveIdempotencyKey(models.SourceMarketplaceOrder, "42", 0)

	assert.NotEqual(t, booking, order)
}
