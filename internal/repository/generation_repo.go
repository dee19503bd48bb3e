package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// GenerationFilter narrows listing to one avatar or one content kind.
// AccountID is always required: listings are per-owner.
type GenerationFilter struct {
	AccountID string
	AvatarID  *string
	Kind      *model.GenerationKind
}

// GenerationRepository persists generation artifacts.
type GenerationRepository interface {
	Create(ctx context.Context, g *model.Generation) error
	GetByID(ctx context.Context, id string) (*model.Generation, error)
	List(ctx context.Context, filter GenerationFilter) ([]model.Generation, error)
	Delete(ctx context.Context, id string) error
}

type generationRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewGenerationRepo creates a new GenerationRepository.
func NewGenerationRepo(pool *pgxpool.Pool, logger zerolog.Logger) GenerationRepository {
	return &generationRepo{pool: pool, logger: logger.With().Str("repository", "GenerationRepository").Logger()}
}

func (r *generationRepo) Create(ctx context.Context, g *model.Generation) error {
	params, err := json.Marshal(g.ExtraParams)
	if err != nil {
		return fmt.Errorf("marshaling extra params: %w", err)
	}
	const q = `
		INSERT INTO generations (user_id, avatar_id, kind, url, prompt, scene_description, style, extra_params)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err = r.pool.QueryRow(ctx, q,
		g.UserID, g.AvatarID, g.Kind, g.URL, g.Prompt, g.SceneDescription, g.Style, params,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting generation for user %s: %w", g.UserID, err)
	}
	return nil
}

const generationColumns = `id, user_id, avatar_id, kind, url, prompt, COALESCE(scene_description, ''), COALESCE(style, ''), extra_params, created_at`

func scanGeneration(row pgx.Row) (*model.Generation, error) {
	var g model.Generation
	var params []byte
	err := row.Scan(&g.ID, &g.UserID, &g.AvatarID, &g.Kind, &g.URL, &g.Prompt, &g.SceneDescription, &g.Style, &params, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &g.ExtraParams); err != nil {
			return nil, fmt.Errorf("unmarshaling extra params for generation %s: %w", g.ID, err)
		}
	}
	return &g, nil
}

func (r *generationRepo) GetByID(ctx context.Context, id string) (*model.Generation, error) {
	q := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1`
	g, err := scanGeneration(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching generation %s: %w", id, err)
	}
	return g, nil
}

// List returns the caller's generations newest first.
func (r *generationRepo) List(ctx context.Context, filter GenerationFilter) ([]model.Generation, error) {
	q := `SELECT ` + generationColumns + ` FROM generations WHERE user_id = $1`
	args := []any{filter.AccountID}
	if filter.AvatarID != nil {
		args = append(args, *filter.AvatarID)
		q += fmt.Sprintf(" AND avatar_id = $%d", len(args))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		q += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing generations for user %s: %w", filter.AccountID, err)
	}
	defer rows.Close()

	var generations []model.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning generation row: %w", err)
		}
		generations = append(generations, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating generation rows: %w", err)
	}
	return generations, nil
}

// Delete hard-deletes the record. Ownership is the caller's concern.
func (r *generationRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM generations WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting generation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("generation_id", id).Msg("Delete matched no generation row")
	}
	return nil
}
