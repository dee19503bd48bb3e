package model

import "time"

// Account roles. Premium accounts get larger credit grants; admin accounts
// bypass per-role limits elsewhere in the stack.
const (
	RoleUser    = "user"
	RolePremium = "premium"
	RoleAdmin   = "admin"
)

// Account is a billable identity holding a spendable credit balance.
// The balance is mutated only through the ledger repository.
type Account struct {
	ID               string    `db:"id" json:"id"`
	FullName         string    `db:"full_name" json:"full_name"`
	Email            string    `db:"email" json:"email"`
	Role             string    `db:"role" json:"role"`
	Credits          int       `db:"credits" json:"credits"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
