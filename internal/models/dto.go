package models

import "time"

// CreatePaymentRequest represents a request to create a settlement payment
type CreatePaymentRequest struct {
	SourceType        SourceType             `json:"sourceType" binding:"required"`
	SourceID          string                 `json:"sourceId" binding:"required"`
	GrossAmount       int64                  `json:"grossAmount" binding:"required"`
	PaymentPercentage int                    `json:"paymentPercentage"`
	Currency          string                 `json:"currency"`
	PayerID           string                 `json:"payerId" binding:"required"`
	PayerEmail        string                 `json:"payerEmail"`
	PayerName         string                 `json:"payerName"`
	CounterpartyID    string                 `json:"counterpartyId" binding:"required"`
	CardToken         string                 `json:"cardToken" binding:"required"`
	Installments      int                    `json:"installments"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// PaymentResponse represents a settlement payment returned to callers
type PaymentResponse struct {
	ID                 string        `json:"id"`
	SourceType         SourceType    `json:"sourceType"`
	SourceID           string        `json:"sourceId"`
	LegIndex           int           `json:"legIndex"`
	GrossAmount        int64         `json:"grossAmount"`
	CommissionAmount   int64         `json:"commissionAmount"`
	CounterpartyAmount int64         `json:"counterpartyAmount"`
	RemainingAmount    int64         `json:"remainingAmount"`
	PaymentPercentage  int           `json:"paymentPercentage"`
	Currency           string        `json:"currency"`
	Status             PaymentStatus `json:"status"`
	StatusDetail       string        `json:"statusDetail,omitempty"`
	StatusReason       string        `json:"statusReason,omitempty"`
	ExternalReference  string        `json:"externalReference"`
	GatewayPaymentID   string        `json:"gatewayPaymentId,omitempty"`
	PayerID            string        `json:"payerId"`
	CounterpartyID     string        `json:"counterpartyId"`
	EscrowReleasedAt   *time.Time    `json:"escrowReleasedAt,omitempty"`
	Duplicate          bool          `json:"duplicate,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// NewPaymentResponse builds a PaymentResponse from a Payment row
func NewPaymentResponse(p *Payment, duplicate bool) *PaymentResponse {
	return &PaymentResponse{
		ID:                 p.ID.String(),
		SourceType:         p.SourceType,
		SourceID:           p.SourceID,
		LegIndex:           p.LegIndex,
		GrossAmount:        p.GrossAmount,
		CommissionAmount:   p.CommissionAmount,
		CounterpartyAmount: p.CounterpartyAmount,
		RemainingAmount:    p.RemainingAmount,
		PaymentPercentage:  p.PaymentPercentage,
		Currency:           p.Currency,
		Status:             p.Status,
		StatusDetail:       p.StatusDetail,
		StatusReason:       p.StatusReason,
		ExternalReference:  p.ExternalReference,
		GatewayPaymentID:   p.GatewayPaymentID,
		PayerID:            p.PayerID,
		CounterpartyID:     p.CounterpartyID,
		EscrowReleasedAt:   p.EscrowReleasedAt,
		Duplicate:          duplicate,
		CreatedAt:          p.CreatedAt,
	}
}

// RefundRequest represents an administrative refund or cancellation request
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReleaseResult represents the outcome of an escrow release attempt
type ReleaseResult struct {
	Released   bool               `json:"released"`
	SourceType SourceType         `json:"sourceType"`
	SourceID   string             `json:"sourceId"`
	ReleasedAt *time.Time         `json:"releasedAt,omitempty"`
	Payments   []*PaymentResponse `json:"payments"`
}

// BalanceResponse represents a counterparty's derived balance
type BalanceResponse struct {
	CounterpartyID  string `json:"counterpartyId"`
	AvailableAmount int64  `json:"availableAmount"`
	PendingAmount   int64  `json:"pendingAmount"`
	Currency        string `json:"currency"`
}

// CommissionSummaryResponse represents aggregated platform commission revenue
type CommissionSummaryResponse struct {
	CollectedAmount int64  `json:"collectedAmount"`
	ReleasedAmount  int64  `json:"releasedAmount"`
	RefundedAmount  int64  `json:"refundedAmount"`
	Currency        string `json:"currency"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
