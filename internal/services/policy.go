package services

import "settlement-service/internal/models"

// CommissionPolicy maps each source type to its commission rate in basis
// points. Rates are captured on the payment row at creation; changing the
// policy never reprices existing legs.
type CommissionPolicy struct {
	rates map[models.SourceType]int
}

// NewCommissionPolicy creates a commission policy with per-source rates
func NewCommissionPolicy(bookingBps, contractBps, marketplaceBps int) *CommissionPolicy {
	return &CommissionPolicy{
		rates: map[models.SourceType]int{
			models.SourceBooking:          bookingBps,
			models.SourceContract:         contractBps,
			models.SourceMarketplaceOrder: marketplaceBps,
		},
	}
}

// RateFor returns the commission rate in basis points for a source type
func (p *CommissionPolicy) RateFor(sourceType models.SourceType) int {
	return p.rates[sourceType]
}
