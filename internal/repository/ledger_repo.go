package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientCredits is returned when a debit would take the balance
// below zero. It is user-recoverable and never retried.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// ErrAccountNotFound is returned when a ledger operation targets an account
// that does not exist. Accounts are created at signup, so this is a
// programmer error rather than a user-facing condition.
var ErrAccountNotFound = errors.New("account_not_found")

// LedgerRepository is the single source of truth for spendable balances.
// All balance mutations go through it.
type LedgerRepository interface {
	// Debit atomically decrements the balance if it covers amount and
	// returns the remaining credits. Two concurrent debits against the same
	// account serialize on the profile row, so the balance can never be
	// spent twice.
	Debit(ctx context.Context, accountID string, amount int) (int, error)
	// Refund adds amount back to the account. It is idempotent on
	// requestID: replaying a refund for the same request is a no-op, and
	// the returned flag reports whether this call was the replay.
	Refund(ctx context.Context, requestID uuid.UUID, accountID string, amount int) (bool, error)
	// Credit adds amount to the account unconditionally (top-ups, grants).
	Credit(ctx context.Context, accountID string, amount int) (int, error)
	// Balance returns the current spendable credits.
	Balance(ctx context.Context, accountID string) (int, error)
}

type ledgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo creates a new LedgerRepository.
func NewLedgerRepo(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{pool: pool}
}

// Debit performs the balance check and decrement in a single statement, so
// the database row lock is the only synchronization point.
func (r *ledgerRepo) Debit(ctx context.Context, accountID string, amount int) (int, error) {
	const q = `
		UPDATE profiles
		SET credits = credits - $2, updated_at = NOW()
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`
	var remaining int
	err := r.pool.QueryRow(ctx, q, accountID, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the balance was short or the account is missing.
		var exists bool
		const existsQ = `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`
		if checkErr := r.pool.QueryRow(ctx, existsQ, accountID).Scan(&exists); checkErr != nil {
			return 0, fmt.Errorf("checking account %s after failed debit: %w", accountID, checkErr)
		}
		if !exists {
			return 0, ErrAccountNotFound
		}
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("debiting %d credits from account %s: %w", amount, accountID, err)
	}
	return remaining, nil
}

// Refund records the refund keyed on the request id and credits the balance
// back in one transaction. A conflict on the request id means the refund
// already went through; the balance is left untouched.
func (r *ledgerRepo) Refund(ctx context.Context, requestID uuid.UUID, accountID string, amount int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("starting refund transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertQ = `
		INSERT INTO credit_refunds (request_id, user_id, credits)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertQ, requestID, accountID, amount)
	if err != nil {
		return false, fmt.Errorf("recording refund for request %s: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		// Replayed refund: already credited, nothing more to do.
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("committing replayed refund for request %s: %w", requestID, err)
		}
		return true, nil
	}

	const creditQ = `UPDATE profiles SET credits = credits + $2, updated_at = NOW() WHERE id = $1`
	creditTag, err := tx.Exec(ctx, creditQ, accountID, amount)
	if err != nil {
		return false, fmt.Errorf("crediting refund of %d to account %s: %w", amount, accountID, err)
	}
	if creditTag.RowsAffected() == 0 {
		return false, ErrAccountNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing refund for request %s: %w", requestID, err)
	}
	return false, nil
}

func (r *ledgerRepo) Credit(ctx context.Context, accountID string, amount int) (int, error) {
	const q = `
		UPDATE profiles
		SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`
	var balance int
	err := r.pool.QueryRow(ctx, q, accountID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("crediting %d to account %s: %w", amount, accountID, err)
	}
	return balance, nil
}

func (r *ledgerRepo) Balance(ctx context.Context, accountID string) (int, error) {
	const q = `SELECT credits FROM profiles WHERE id = $1`
	var balance int
	err := r.pool.QueryRow(ctx, q, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance for account %s: %w", accountID, err)
	}
	return balance, nil
}
