package services

import (
	"fmt"

	"settlement-service/internal/models"
)

// AmountBreakdown is the money split for one settlement leg, all in integer
// minor units
type AmountBreakdown struct {
	LegAmount          int64
	CommissionAmount   int64
	CounterpartyAmount int64
	RemainingAmount    int64
}

// CalculateAmounts splits a gross amount into one settlement leg.
// The leg is the requested percentage of gross, rounded half-up; the
// remainder stays with the source for a later leg. Commission is taken from
// the leg at rateBps basis points, rounded half-up, and the counterparty gets
// the rest, so commission plus counterparty always equals the leg exactly.
func CalculateAmounts(gross int64, percentage int, rateBps int) (*AmountBreakdown, error) {
	if gross <= 0 {
		return nil, &models.ValidationError{Field: "grossAmount", Message: "must be a positive amount in minor units"}
	}
	if percentage != 50 && percentage != 100 {
		return nil, &models.ValidationError{Field: "paymentPercentage", Message: "must be 50 or 100"}
	}
	if rateBps < 0 || rateBps > 10000 {
		return nil, &models.ValidationError{Field: "commissionRateBps", Message: fmt.Sprintf("rate %d out of range", rateBps)}
	}

	leg := roundHalfUp(gross*int64(percentage), 100)
	commission := roundHalfUp(leg*int64(rateBps), 10000)

	return &AmountBreakdown{
		LegAmount:          leg,
		CommissionAmount:   commission,
		CounterpartyAmount: leg - commission,
		RemainingAmount:    gross - leg,
	}, nil
}

// roundHalfUp divides numerator by denominator, rounding halves away from
// zero. Inputs are non-negative here.
func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
