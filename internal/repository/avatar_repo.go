package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// AvatarRepository persists avatars and their appearance attributes.
type AvatarRepository interface {
	Create(ctx context.Context, a *model.Avatar) error
	GetByID(ctx context.Context, id string) (*model.Avatar, error)
	ListByUser(ctx context.Context, userID string) ([]model.Avatar, error)
	Update(ctx context.Context, a *model.Avatar) error
	Delete(ctx context.Context, id string) error
	// UpdatePrimaryImage sets the avatar's primary image URL. Last write
	// wins; callers own the avatar exclusively per request, so no conflict
	// detection is needed.
	UpdatePrimaryImage(ctx context.Context, id, url string) error
}

type avatarRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAvatarRepo creates a new AvatarRepository.
func NewAvatarRepo(pool *pgxpool.Pool, logger zerolog.Logger) AvatarRepository {
	return &avatarRepo{pool: pool, logger: logger.With().Str("repository", "AvatarRepository").Logger()}
}

const avatarColumns = `id, user_id, name, COALESCE(description, ''), style,
	COALESCE(gender, ''), COALESCE(ethnicity, ''), COALESCE(age, ''), COALESCE(body_type, ''),
	COALESCE(hair_style, ''), COALESCE(hair_color, ''), COALESCE(eye_color, ''), COALESCE(fashion_style, ''),
	COALESCE(role_description, ''), primary_image_url, created_at, updated_at`

func scanAvatar(row pgx.Row) (*model.Avatar, error) {
	var a model.Avatar
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Description, &a.Style,
		&a.Gender, &a.Ethnicity, &a.Age, &a.BodyType,
		&a.HairStyle, &a.HairColor, &a.EyeColor, &a.FashionStyle,
		&a.RoleDescription, &a.PrimaryImageURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *avatarRepo) Create(ctx context.Context, a *model.Avatar) error {
	const q = `
		INSERT INTO avatars (user_id, name, description, style, gender, ethnicity, age, body_type,
			hair_style, hair_color, eye_color, fashion_style, role_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, q,
		a.UserID, a.Name, a.Description, a.Style, a.Gender, a.Ethnicity, a.Age, a.BodyType,
		a.HairStyle, a.HairColor, a.EyeColor, a.FashionStyle, a.RoleDescription,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting avatar for user %s: %w", a.UserID, err)
	}
	return nil
}

func (r *avatarRepo) GetByID(ctx context.Context, id string) (*model.Avatar, error) {
	q := `SELECT ` + avatarColumns + ` FROM avatars WHERE id = $1`
	a, err := scanAvatar(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching avatar %s: %w", id, err)
	}
	return a, nil
}

func (r *avatarRepo) ListByUser(ctx context.Context, userID string) ([]model.Avatar, error) {
	q := `SELECT ` + avatarColumns + ` FROM avatars WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("listing avatars for user %s: %w", userID, err)
	}
	defer rows.Close()

	var avatars []model.Avatar
	for rows.Next() {
		a, err := scanAvatar(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning avatar row: %w", err)
		}
		avatars = append(avatars, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating avatar rows: %w", err)
	}
	return avatars, nil
}

func (r *avatarRepo) Update(ctx context.Context, a *model.Avatar) error {
	const q = `
		UPDATE avatars
		SET name = $2, description = $3, style = $4, gender = $5, ethnicity = $6, age = $7,
			body_type = $8, hair_style = $9, hair_color = $10, eye_color = $11,
			fashion_style = $12, role_description = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, q,
		a.ID, a.Name, a.Description, a.Style, a.Gender, a.Ethnicity, a.Age,
		a.BodyType, a.HairStyle, a.HairColor, a.EyeColor,
		a.FashionStyle, a.RoleDescription,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("avatar %s not found for update", a.ID)
	}
	if err != nil {
		return fmt.Errorf("updating avatar %s: %w", a.ID, err)
	}
	return nil
}

func (r *avatarRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM avatars WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("deleting avatar %s: %w", id, err)
	}
	return nil
}

func (r *avatarRepo) UpdatePrimaryImage(ctx context.Context, id, url string) error {
	const q = `UPDATE avatars SET primary_image_url = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, url)
	if err != nil {
		return fmt.Errorf("updating primary image for avatar %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("avatar_id", id).Msg("Primary image update matched no avatar row")
	}
	return nil
}
