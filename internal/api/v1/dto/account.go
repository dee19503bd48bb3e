package dto

import "time"

// AccountResponseDTO is the caller's own profile.
type AccountResponseDTO struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageLogEntryDTO is one audit-trail entry in API responses.
type UsageLogEntryDTO struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	CreditsUsed int            `json:"credits_used"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
