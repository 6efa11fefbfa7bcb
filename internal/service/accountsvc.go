package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ShifaPortalwebserver/internal/auth"
	"ShifaPortalwebserver/internal/domain"
)

type AccountsStore interface {
	CreateAccount(ctx context.Context, na domain.NewAccount) (domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithPassword, error)
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (domain.Account, error)
	SetResetToken(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.Account, error)
	DecideAccount(ctx context.Context, accountID string, decision domain.AccountStatus) (domain.Account, error)
}

// Notifier delivers the lifecycle emails. Delivery is best effort: the
// service logs failures and never fails the request over them.
type Notifier interface {
	SendVerification(ctx context.Context, toEmail, name, token string) error
	SendPasswordReset(ctx context.Context, toEmail, name, token string) error
	SendDecision(ctx context.Context, toEmail, name string, decision domain.AccountStatus) error
}

type AccountService struct {
	Accounts AccountsStore
	Notifier Notifier
	Tokens   *auth.TokenManager
	Hasher   auth.Hasher
	Logger   *slog.Logger

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	Now            func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *AccountService) Register(ctx context.Context, name, email, password string, role domain.Role) (domain.Account, error) {
	if s.Accounts == nil {
		return domain.Account{}, fmt.Errorf("accounts store unavailable")
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	passwordHash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	ttl := s.VerifyTokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	token, err := auth.IssueToken(s.now(), ttl)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := s.Accounts.CreateAccount(ctx, domain.NewAccount{
		Name:                  name,
		Email:                 email,
		PasswordHash:          passwordHash,
		Role:                  role,
		VerificationTokenHash: token.Hash,
		VerificationExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		return domain.Account{}, err
	}

	// The account exists even if the email never arrives.
	s.notify("verification", func() error {
		return s.Notifier.SendVerification(ctx, account.Email, account.Name, token.Raw)
	})

	return account, nil
}

func (s *AccountService) VerifyEmail(ctx context.Context, rawToken string) error {
	if s.Accounts == nil {
		return fmt.Errorf("accounts store unavailable")
	}

	_, err := s.Accounts.ConsumeVerificationToken(ctx, auth.HashToken(rawToken), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			// Wrong, expired and already-consumed all collapse into the
			// same opaque error toward the caller.
			s.logger().Info("email verification rejected")
			return domain.ErrTokenInvalid
		}
		return err
	}
	return nil
}

// RequestPasswordReset returns nil for unknown addresses so responses cannot
// be used to enumerate accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.Accounts == nil {
		return fmt.Errorf("accounts store unavailable")
	}

	email = strings.TrimSpace(strings.ToLower(email))

	account, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger().Info("password reset requested for unknown address")
			return nil
		}
		return err
	}

	ttl := s.ResetTokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	token, err := auth.IssueToken(s.now(), ttl)
	if err != nil {
		return err
	}

	if err := s.Accounts.SetResetToken(ctx, account.ID, token.Hash, token.ExpiresAt); err != nil {
		return err
	}

	s.notify("password reset", func() error {
		return s.Notifier.SendPasswordReset(ctx, account.Email, account.Name, token.Raw)
	})

	return nil
}

func (s *AccountService) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if s.Accounts == nil {
		return fmt.Errorf("accounts store unavailable")
	}

	passwordHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.Accounts.ConsumeResetToken(ctx, auth.HashToken(rawToken), passwordHash, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			s.logger().Info("password reset rejected")
			return domain.ErrTokenInvalid
		}
		return err
	}
	return nil
}

func (s *AccountService) DecideApproval(ctx context.Context, accountID string, decision domain.AccountStatus, actingRole domain.Role) error {
	if actingRole != domain.RoleAdmin {
		return domain.ErrUnauthorized
	}
	if !domain.ValidDecision(decision) {
		return domain.NewValidationError(map[string]string{"decision": "must be approved or rejected"})
	}
	if s.Accounts == nil {
		return fmt.Errorf("accounts store unavailable")
	}

	account, err := s.Accounts.DecideAccount(ctx, accountID, decision)
	if err != nil {
		return err
	}

	// Status change is authoritative regardless of delivery.
	s.notify("decision", func() error {
		return s.Notifier.SendDecision(ctx, account.Email, account.Name, decision)
	})

	return nil
}

// dummyHash is a well-formed argon2id digest of nothing in particular; it
// keeps login timing uniform when the address does not exist.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func (s *AccountService) Login(ctx context.Context, email, password string) (domain.Account, string, error) {
	if s.Accounts == nil || s.Tokens == nil {
		return domain.Account{}, "", fmt.Errorf("auth service unavailable")
	}

	email = strings.TrimSpace(strings.ToLower(email))

	account, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_, _ = auth.VerifyPassword(dummyHash, password)
			return domain.Account{}, "", domain.ErrInvalidCredentials
		}
		return domain.Account{}, "", err
	}

	ok, err := auth.VerifyPassword(account.PasswordHash, password)
	if err != nil {
		return domain.Account{}, "", err
	}
	if !ok {
		return domain.Account{}, "", domain.ErrInvalidCredentials
	}

	if !account.EmailVerified {
		return domain.Account{}, "", domain.ErrEmailNotVerified
	}
	switch account.Status {
	case domain.StatusApproved:
	case domain.StatusRejected:
		return domain.Account{}, "", domain.ErrAccountRejected
	default:
		return domain.Account{}, "", domain.ErrAccountPending
	}

	signed, err := s.Tokens.Sign(account.ID, account.Role)
	if err != nil {
		return domain.Account{}, "", err
	}

	return account.Account, signed, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	if s.Accounts == nil {
		return domain.Account{}, fmt.Errorf("accounts store unavailable")
	}
	return s.Accounts.GetAccountByID(ctx, id)
}

func (s *AccountService) notify(kind string, send func() error) {
	if s.Notifier == nil {
		s.logger().Warn("notifier not configured, skipping email", "kind", kind)
		return
	}
	if err := send(); err != nil {
		s.logger().Error("send email failed", "kind", kind, "err", err)
	}
}
