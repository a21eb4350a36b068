package gateway

import "context"

// OutcomeStatus is the internal outcome a gateway status maps to
type OutcomeStatus string

const (
	OutcomeApproved OutcomeStatus = "approved"
	OutcomePending  OutcomeStatus = "pending"
	OutcomeRejected OutcomeStatus = "rejected"
)

// MapStatus normalizes a native gateway status to an internal outcome.
// Unknown statuses map to pending so the sweep re-checks them rather than
// guessing a terminal state.
func MapStatus(native string) OutcomeStatus {
	switch native {
	case "approved":
		return OutcomeApproved
	case "pending", "in_process", "in_mediation", "authorized":
		return OutcomePending
	case "rejected", "cancelled", "refunded", "charged_back":
		return OutcomeRejected
	default:
		return OutcomePending
	}
}

// ChargeRequest represents a charge submission to the processor
type ChargeRequest struct {
	Amount            int64
	Currency          string
	ExternalReference string
	IdempotencyKey    string
	Token             string
	Installments      int
	PayerID           string
	PayerEmail        string
	PayerName         string
	Description       string
	Metadata          map[string]interface{}
}

// ChargeResult represents the synchronous outcome of a charge submission
type ChargeResult struct {
	GatewayPaymentID string
	Status           OutcomeStatus
	StatusDetail     string
	RawStatus        string
}

// PaymentResource is the authoritative payment state fetched from the processor
type PaymentResource struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            int64
	Currency          string
}

// MerchantOrderResource groups the payments attached to one merchant order
type MerchantOrderResource struct {
	ID                string
	ExternalReference string
	PaymentIDs        []string
}

// Gateway defines the operations the settlement engine needs from the
// payment processor
type Gateway interface {
	CreateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentResource, error)
	GetMerchantOrder(ctx context.Context, orderID string) (*MerchantOrderResource, error)
	FindPaymentByReference(ctx context.Context, externalReference string) (*PaymentResource, error)
}

// GatewayError represents an error from the payment processor
type GatewayError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *GatewayError) Error() string {
	return e.Message
}

// IsRetryable reports whether err is a GatewayError worth retrying
// (network failure, timeout, processor 5xx)
func IsRetryable(err error) bool {
	if gwErr, ok := err.(*GatewayError); ok {
		return gwErr.Retryable
	}
	return false
}
