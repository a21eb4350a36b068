package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the transaction family a payment settles
type SourceType string

const (
	SourceBooking          SourceType = "BOOKING"
	SourceContract         SourceType = "CONTRACT"
	SourceMarketplaceOrder SourceType = "MARKETPLACE_ORDER"
)

// ValidSourceType reports whether t is a known source type
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceBooking, SourceContract, SourceMarketplaceOrder:
		return true
	}
	return false
}

// PaymentStatus represents the settlement state of a payment
type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "CREATED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentApproved  PaymentStatus = "APPROVED"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentInEscrow  PaymentStatus = "IN_ESCROW"
	PaymentReleased  PaymentStatus = "RELEASED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave s
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentRejected, PaymentReleased, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

// InCustody reports whether funds in this status are held by the platform
// pending release
func (s PaymentStatus) InCustody() bool {
	return s == PaymentApproved || s == PaymentInEscrow
}

// CustodyStatuses are the states a release or refund transition accepts as prior
var CustodyStatuses = []PaymentStatus{PaymentApproved, PaymentInEscrow}

// PriorStatesFor returns the states a gateway-driven transition into target
// may be applied from. The webhook reconciler and the reconciliation sweep use
// these as CAS guards; a delivery whose guard fails is stale and a no-op.
// The created->approved pair covers the sweep path where the charge outcome is
// only learned after the fact, skipping pending entirely.
func PriorStatesFor(target PaymentStatus) []PaymentStatus {
	switch target {
	case PaymentPending:
		return []PaymentStatus{PaymentCreated}
	case PaymentApproved:
		return []PaymentStatus{PaymentCreated, PaymentPending}
	case PaymentRejected:
		return []PaymentStatus{PaymentCreated, PaymentPending}
	default:
		return nil
	}
}

// JSONB custom type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(j))
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = JSONB(m)
	return nil
}

// Payment is one settlement leg against the gateway. Rows are append-only:
// a payment is never deleted, only superseded by new rows for subsequent
// partial-payment legs or administrative refunds.
//
// All amounts are integer minor currency units. CommissionAmount plus
// CounterpartyAmount always equals GrossAmount; both are fixed at creation
// and never recomputed.
type Payment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SourceType SourceType `gorm:"type:varchar(50);not null;index:idx_payments_source,priority:1" json:"sourceType"`
	SourceID   string     `gorm:"type:varchar(255);not null;index:idx_payments_source,priority:2" json:"sourceId"`
	LegIndex   int        `gorm:"not null;default:0" json:"legIndex"`

	// Amounts (minor units)
	GrossAmount        int64  `gorm:"not null" json:"grossAmount"`
	CommissionAmount   int64  `gorm:"not null" json:"commissionAmount"`
	CounterpartyAmount int64  `gorm:"not null" json:"counterpartyAmount"`
	RemainingAmount    int64  `gorm:"not null;default:0" json:"remainingAmount"`
	PaymentPercentage  int    `gorm:"not null" json:"paymentPercentage"`
	CommissionRateBps  int    `gorm:"not null" json:"commissionRateBps"`
	Currency           string `gorm:"type:varchar(3);default:'USD'" json:"currency"`

	// Status
	Status       PaymentStatus `gorm:"type:varchar(50);not null;index:idx_payments_status" json:"status"`
	StatusDetail string        `gorm:"type:varchar(255)" json:"statusDetail,omitempty"`
	StatusReason string        `gorm:"type:text" json:"statusReason,omitempty"`

	// Gateway correlation
	ExternalReference string `gorm:"type:varchar(255);not null;uniqueIndex:idx_payments_external_ref" json:"externalReference"`
	GatewayPaymentID  string `gorm:"type:varchar(255);index:idx_payments_gateway_id" json:"gatewayPaymentId,omitempty"`

	// Parties
	PayerID        string `gorm:"type:varchar(255);index:idx_payments_payer" json:"payerId"`
	PayerEmail     string `gorm:"type:varchar(255)" json:"payerEmail,omitempty"`
	CounterpartyID string `gorm:"type:varchar(255);index:idx_payments_counterparty" json:"counterpartyId"`

	// Escrow
	EscrowReleasedAt *time.Time `json:"escrowReleasedAt,omitempty"`

	// Metadata is an opaque side channel for gateway status detail.
	// Surfaced for observability, never consulted by state-machine logic.
	Metadata JSONB `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_payments_created" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// SourceState tracks the release preconditions of one source transaction.
// Collaborator endpoints write it; the escrow release authority only reads it.
type SourceState struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SourceType SourceType `gorm:"type:varchar(50);not null;uniqueIndex:idx_source_states_source,priority:1" json:"sourceType"`
	SourceID   string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_source_states_source,priority:2" json:"sourceId"`

	WorkCompleted   bool       `gorm:"default:false" json:"workCompleted"`
	WorkCompletedAt *time.Time `json:"workCompletedAt,omitempty"`
	Confirmed       bool       `gorm:"default:false" json:"confirmed"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for SourceState
func (SourceState) TableName() string {
	return "source_states"
}

// CommissionEntryType represents the type of commission ledger entry
type CommissionEntryType string

const (
	CommissionCollection CommissionEntryType = "collection"
	CommissionRelease    CommissionEntryType = "release"
	CommissionRefund     CommissionEntryType = "refund"
)

// CommissionEntry is an append-only commission ledger row. Platform revenue
// and counterparty balances are derived by aggregating these entries and the
// payments table; there is no separately mutated balance counter.
type CommissionEntry struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PaymentID uuid.UUID           `gorm:"type:uuid;not null;index:idx_commission_entries_payment" json:"paymentId"`
	EntryType CommissionEntryType `gorm:"type:varchar(20);not null" json:"entryType"`
	Amount    int64               `gorm:"not null" json:"amount"`
	Currency  string              `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	CreatedAt time.Time           `gorm:"default:CURRENT_TIMESTAMP;index:idx_commission_entries_created" json:"createdAt"`
}

// TableName specifies the table name for CommissionEntry
func (CommissionEntry) TableName() string {
	return "commission_entries"
}

// WebhookEvent records a normalized gateway notification. The row exists for
// observability and internal retry; idempotency of effects comes from the
// CAS-guarded transitions, not from this table.
type WebhookEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ResourceType string    `gorm:"type:varchar(50);index:idx_webhook_events_resource,priority:1" json:"resourceType"`
	ResourceID   string    `gorm:"type:varchar(255);index:idx_webhook_events_resource,priority:2" json:"resourceId"`

	Payload JSONB `gorm:"type:jsonb" json:"payload"`

	Processed       bool       `gorm:"default:false;index:idx_webhook_events_processed" json:"processed"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`
	RetryCount      int        `gorm:"default:0" json:"retryCount"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_webhook_events_created" json:"createdAt"`
}

// TableName specifies the table name for WebhookEvent
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
