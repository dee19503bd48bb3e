package dto

import "time"

// PaymentIntentRequestDTO is the body of POST /billing/payment-intent.
type PaymentIntentRequestDTO struct {
	PackID string `json:"pack_id" validate:"required"`
}

// PaymentIntentResponseDTO carries the Stripe client secret back to the
// frontend, which completes the payment there.
type PaymentIntentResponseDTO struct {
	ClientSecret string `json:"client_secret"`
}

// CreditPackDTO is one purchasable pack.
type CreditPackDTO struct {
	ID          string `json:"id"`
	Credits     int    `json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// CreditPurchaseDTO is one settled purchase in API responses.
type CreditPurchaseDTO struct {
	ID          string    `json:"id"`
	PackID      string    `json:"pack_id"`
	Credits     int       `json:"credits"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}
