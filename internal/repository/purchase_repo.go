package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PurchaseRepository settles payments into credits.
type PurchaseRepository interface {
	// Settle records the purchase and credits the account in one
	// transaction. It is idempotent on the Stripe payment-intent id; the
	// returned flag reports whether credits were actually applied, so a
	// replayed webhook grants nothing twice.
	Settle(ctx context.Context, p *model.CreditPurchase) (bool, error)
	ListByAccount(ctx context.Context, accountID string) ([]model.CreditPurchase, error)
}

type purchaseRepo struct {
	pool *pgxpool.Pool
}

// NewPurchaseRepo creates a new PurchaseRepository.
func NewPurchaseRepo(pool *pgxpool.Pool) PurchaseRepository {
	return &purchaseRepo{pool: pool}
}

func (r *purchaseRepo) Settle(ctx context.Context, p *model.CreditPurchase) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("starting settlement transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertQ = `
		INSERT INTO credit_purchases (user_id, pack_id, credits, amount_cents, stripe_payment_intent_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stripe_payment_intent_id) DO NOTHING
		RETURNING id, created_at
	`
	rows, err := tx.Query(ctx, insertQ, p.UserID, p.PackID, p.Credits, p.AmountCents, p.StripePaymentIntentID)
	if err != nil {
		return false, fmt.Errorf("recording purchase %s: %w", p.StripePaymentIntentID, err)
	}
	inserted := rows.Next()
	if inserted {
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			rows.Close()
			return false, fmt.Errorf("scanning purchase row: %w", err)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("inserting purchase %s: %w", p.StripePaymentIntentID, err)
	}
	if !inserted {
		// Replayed webhook: the payment was already settled.
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("committing replayed settlement: %w", err)
		}
		return false, nil
	}

	const creditQ = `UPDATE profiles SET credits = credits + $2, updated_at = NOW() WHERE id = $1`
	tag, err := tx.Exec(ctx, creditQ, p.UserID, p.Credits)
	if err != nil {
		return false, fmt.Errorf("crediting purchase to account %s: %w", p.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, ErrAccountNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing settlement for %s: %w", p.StripePaymentIntentID, err)
	}
	return true, nil
}

func (r *purchaseRepo) ListByAccount(ctx context.Context, accountID string) ([]model.CreditPurchase, error) {
	const q = `
		SELECT id, user_id, pack_id, credits, amount_cents, stripe_payment_intent_id, created_at
		FROM credit_purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing purchases for user %s: %w", accountID, err)
	}
	defer rows.Close()

	var purchases []model.CreditPurchase
	for rows.Next() {
		var p model.CreditPurchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.PackID, &p.Credits, &p.AmountCents, &p.StripePaymentIntentID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning purchase row: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating purchase rows: %w", err)
	}
	return purchases, nil
}
