package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ShifaPortalwebserver/internal/domain"
)

type record struct {
	account      domain.Account
	passwordHash string

	verificationTokenHash string
	verificationExpiresAt time.Time

	resetTokenHash string
	resetExpiresAt time.Time
}

// AccountsStore is a mutex-guarded in-memory stand-in for the Postgres store.
// It mirrors the conditional-update semantics so tests exercise the same
// consume-once behavior as production.
type AccountsStore struct {
	mu      sync.Mutex
	byID    map[string]*record
	byEmail map[string]*record
	now     func() time.Time
}

func NewAccountsStore() *AccountsStore {
	return &AccountsStore{
		byID:    make(map[string]*record),
		byEmail: make(map[string]*record),
		now:     time.Now,
	}
}

func (s *AccountsStore) CreateAccount(_ context.Context, na domain.NewAccount) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[na.Email]; exists {
		return domain.Account{}, domain.ErrEmailTaken
	}

	now := s.now()
	rec := &record{
		account: domain.Account{
			ID:            uuid.NewString(),
			Name:          na.Name,
			Email:         na.Email,
			Role:          na.Role,
			Status:        domain.StatusPending,
			EmailVerified: false,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		passwordHash:          na.PasswordHash,
		verificationTokenHash: na.VerificationTokenHash,
		verificationExpiresAt: na.VerificationExpiresAt,
	}
	s.byID[rec.account.ID] = rec
	s.byEmail[rec.account.Email] = rec
	return rec.account, nil
}

func (s *AccountsStore) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return rec.account, nil
}

func (s *AccountsStore) GetAccountByEmail(_ context.Context, email string) (domain.AccountWithPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byEmail[email]
	if !ok {
		return domain.AccountWithPassword{}, domain.ErrNotFound
	}
	return domain.AccountWithPassword{Account: rec.account, PasswordHash: rec.passwordHash}, nil
}

func (s *AccountsStore) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.byID {
		if rec.verificationTokenHash == "" || rec.verificationTokenHash != tokenHash {
			continue
		}
		if !rec.verificationExpiresAt.After(now) {
			return domain.Account{}, domain.ErrTokenInvalid
		}
		rec.account.EmailVerified = true
		rec.verificationTokenHash = ""
		rec.verificationExpiresAt = time.Time{}
		rec.account.UpdatedAt = s.now()
		return rec.account, nil
	}
	return domain.Account{}, domain.ErrTokenInvalid
}

func (s *AccountsStore) SetResetToken(_ context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.resetTokenHash = tokenHash
	rec.resetExpiresAt = expiresAt
	rec.account.UpdatedAt = s.now()
	return nil
}

func (s *AccountsStore) ConsumeResetToken(_ context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.byID {
		if rec.resetTokenHash == "" || rec.resetTokenHash != tokenHash {
			continue
		}
		if !rec.resetExpiresAt.After(now) {
			return domain.Account{}, domain.ErrTokenInvalid
		}
		rec.passwordHash = newPasswordHash
		rec.resetTokenHash = ""
		rec.resetExpiresAt = time.Time{}
		rec.account.UpdatedAt = s.now()
		return rec.account, nil
	}
	return domain.Account{}, domain.ErrTokenInvalid
}

func (s *AccountsStore) DecideAccount(_ context.Context, accountID string, decision domain.AccountStatus) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	if rec.account.Status != domain.StatusPending {
		return domain.Account{}, domain.ErrDecisionMade
	}
	rec.account.Status = decision
	rec.account.UpdatedAt = s.now()
	return rec.account, nil
}

func (s *AccountsStore) ListAccounts(_ context.Context, status domain.AccountStatus, limit, offset int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.Account, 0, len(s.byID))
	for _, rec := range s.byID {
		if status != "" && rec.account.Status != status {
			continue
		}
		all = append(all, rec.account)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []domain.Account{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
