package services

import (
	"fmt"
	"strings"

	"settlement-service/internal/models"
)

// DeriveIdempotencyKey derives the stable idempotency key for one settlement
// leg. The same (sourceType, sourceID, legIndex) always yields the same key,
// and different legs of the same source yield different keys. The key is sent
// to the processor as the idempotency header and stored as the payment's
// external reference, where a unique index enforces it.
func DeriveIdempotencyKey(sourceType models.SourceType, sourceID string, legIndex int) string {
	return fmt.Sprintf("settle-%s-%s-%d", strings.ToLower(string(sourceType)), sourceID, legIndex)
}
