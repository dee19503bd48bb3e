package model

import (
	"encoding/json"
	"time"
)

// Usage log action names.
const (
	ActionGenerateImage = "generate_image"
	ActionGenerateVideo = "generate_video"
)

// UsageLogEntry is one row of the append-only audit trail of billed
// actions. Entries are never mutated or deleted; the sum of CreditsUsed
// per account reconciles against ledger balance changes.
type UsageLogEntry struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	Action      string         `db:"action" json:"action"`
	CreditsUsed int            `db:"credits_used" json:"credits_used"`
	Details     map[string]any `db:"details" json:"details,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// MarshalQueuePayload renders the entry as the retry-queue wire payload.
func (e *UsageLogEntry) MarshalQueuePayload() ([]byte, error) {
	return json.Marshal(e)
}
