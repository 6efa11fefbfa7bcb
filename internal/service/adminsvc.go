package service

import (
	"context"

	"ShifaPortalwebserver/internal/domain"
)

type AdminAccountsStore interface {
	ListAccounts(ctx context.Context, status domain.AccountStatus, limit, offset int) ([]domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
}

type AdminService struct {
	Accounts AdminAccountsStore
}

func (s *AdminService) ListAccounts(ctx context.Context, status domain.AccountStatus, limit, offset int) ([]domain.Account, error) {
	return s.Accounts.ListAccounts(ctx, status, limit, offset)
}

func (s *AdminService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return s.Accounts.GetAccountByID(ctx, id)
}
