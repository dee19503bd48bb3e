package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is the append-only audit log of billed actions. Rows are
// never mutated or deleted.
type UsageRepository interface {
	// Record appends one usage entry and fills in its id and timestamp.
	Record(ctx context.Context, e *model.UsageLogEntry) error
	// ListByAccount returns entries newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]model.UsageLogEntry, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Record(ctx context.Context, e *model.UsageLogEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshaling usage details: %w", err)
	}
	const q = `
		INSERT INTO usage_logs (user_id, action, credits_used, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.pool.QueryRow(ctx, q, e.UserID, e.Action, e.CreditsUsed, details).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("recording usage for user %s: %w", e.UserID, err)
	}
	return nil
}

func (r *usageRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.UsageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, user_id, action, credits_used, details, created_at
		FROM usage_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing usage for user %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []model.UsageLogEntry
	for rows.Next() {
		var e model.UsageLogEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.CreditsUsed, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling usage details for entry %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage rows: %w", err)
	}
	return entries, nil
}
