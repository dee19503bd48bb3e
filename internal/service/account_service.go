package service

import (
	"context"

	"app/internal/model"
	"app/internal/repository"
)

// AccountService exposes the caller's own profile, balance and audit trail.
type AccountService interface {
	Get(ctx context.Context, userID string) (*model.Account, error)
	Usage(ctx context.Context, userID string, limit int) ([]model.UsageLogEntry, error)
	Purchases(ctx context.Context, userID string) ([]model.CreditPurchase, error)
}

type accountService struct {
	accounts  repository.AccountRepository
	usage     repository.UsageRepository
	purchases repository.PurchaseRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts repository.AccountRepository, usage repository.UsageRepository, purchases repository.PurchaseRepository) AccountService {
	return &accountService{accounts: accounts, usage: usage, purchases: purchases}
}

func (s *accountService) Get(ctx context.Context, userID string) (*model.Account, error) {
	a, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

func (s *accountService) Usage(ctx context.Context, userID string, limit int) ([]model.UsageLogEntry, error) {
	return s.usage.ListByAccount(ctx, userID, limit)
}

func (s *accountService) Purchases(ctx context.Context, userID string) ([]model.CreditPurchase, error) {
	return s.purchases.ListByAccount(ctx, userID)
}
