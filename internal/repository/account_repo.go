package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository reads and maintains account profiles. Credit balances
// are owned by the ledger repository; this one never touches them.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error)
	UpdateStripeCustomerID(ctx context.Context, id, customerID string) error
}

type accountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo creates a new AccountRepository.
func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepo{pool: pool}
}

const accountColumns = `id, COALESCE(full_name, ''), COALESCE(email, ''), role, credits, stripe_customer_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Role, &a.Credits, &a.StripeCustomerID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM profiles WHERE id = $1`
	a, err := scanAccount(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", id, err)
	}
	return a, nil
}

func (r *accountRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM profiles WHERE stripe_customer_id = $1`
	a, err := scanAccount(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetching account by stripe customer %s: %w", customerID, err)
	}
	return a, nil
}

func (r *accountRepo) UpdateStripeCustomerID(ctx context.Context, id, customerID string) error {
	const q = `UPDATE profiles SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, customerID)
	if err != nil {
		return fmt.Errorf("storing stripe customer id for account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
