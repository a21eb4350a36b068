package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the repository and service layers
var (
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrSourceStateNotFound     = errors.New("source state not found")
	ErrDuplicateSubmission     = errors.New("duplicate submission")
	ErrReconciliationAmbiguous = errors.New("payment outcome unresolved at gateway")
)

// Precondition failure reasons for escrow release
const (
	ReasonWorkNotCompleted = "work_not_completed"
	ReasonNotConfirmed     = "not_confirmed"
)

// ValidationError indicates a request that fails input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// PreconditionNotMetError indicates an escrow release attempted before its
// preconditions hold. Reason is one of the Reason* constants.
type PreconditionNotMetError struct {
	Reason string
}

func (e *PreconditionNotMetError) Error() string {
	return fmt.Sprintf("release precondition not met: %s", e.Reason)
}
