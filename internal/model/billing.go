package model

import "time"

// CreditPack is a purchasable bundle of credits. Pack contents are policy
// constants defined in the billing service, not stored data.
type CreditPack struct {
	ID          string `json:"id"`
	Credits     int    `json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// CreditPurchase records a settled payment that granted credits.
// StripePaymentIntentID is unique, which makes webhook replays no-ops.
type CreditPurchase struct {
	ID                    string    `db:"id" json:"id"`
	UserID                string    `db:"user_id" json:"user_id"`
	PackID                string    `db:"pack_id" json:"pack_id"`
	Credits               int       `db:"credits" json:"credits"`
	AmountCents           int64     `db:"amount_cents" json:"amount_cents"`
	StripePaymentIntentID string    `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}
