package service

import (
	"context"

	"app/internal/model"
	"app/internal/repository"
)

// AvatarService manages user-owned avatars. Every operation that targets
// an existing avatar verifies ownership first.
type AvatarService interface {
	Create(ctx context.Context, a *model.Avatar) (*model.Avatar, error)
	Get(ctx context.Context, userID, avatarID string) (*model.Avatar, error)
	List(ctx context.Context, userID string) ([]model.Avatar, error)
	Update(ctx context.Context, userID string, a *model.Avatar) (*model.Avatar, error)
	Delete(ctx context.Context, userID, avatarID string) error
}

type avatarService struct {
	repo repository.AvatarRepository
}

// NewAvatarService creates a new AvatarService.
func NewAvatarService(repo repository.AvatarRepository) AvatarService {
	return &avatarService{repo: repo}
}

func (s *avatarService) Create(ctx context.Context, a *model.Avatar) (*model.Avatar, error) {
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *avatarService) owned(ctx context.Context, userID, avatarID string) (*model.Avatar, error) {
	a, err := s.repo.GetByID(ctx, avatarID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.UserID != userID {
		// Hide other users' avatars behind not-found.
		return nil, ErrAvatarNotFound
	}
	return a, nil
}

func (s *avatarService) Get(ctx context.Context, userID, avatarID string) (*model.Avatar, error) {
	return s.owned(ctx, userID, avatarID)
}

func (s *avatarService) List(ctx context.Context, userID string) ([]model.Avatar, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *avatarService) Update(ctx context.Context, userID string, a *model.Avatar) (*model.Avatar, error) {
	existing, err := s.owned(ctx, userID, a.ID)
	if err != nil {
		return nil, err
	}
	a.UserID = existing.UserID
	a.PrimaryImageURL = existing.PrimaryImageURL
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *avatarService) Delete(ctx context.Context, userID, avatarID string) error {
	if _, err := s.owned(ctx, userID, avatarID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, avatarID)
}
