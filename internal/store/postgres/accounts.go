package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ShifaPortalwebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

const accountColumns = `id, name, email, role, status, email_verified, created_at, updated_at`

func (s *AccountsStore) CreateAccount(ctx context.Context, na domain.NewAccount) (domain.Account, error) {
	const q = `
		INSERT INTO accounts (
			name, email, password_hash, role, status, email_verified,
			verification_token_hash, verification_expires_at
		)
		VALUES ($1, $2, $3, $4, 'pending', false, $5, $6)
		RETURNING ` + accountColumns

	row := s.pool.QueryRow(ctx, q,
		na.Name,
		na.Email,
		na.PasswordHash,
		na.Role,
		na.VerificationTokenHash,
		na.VerificationExpiresAt,
	)
	a, err := scanAccount(row)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return domain.Account{}, domain.ErrEmailTaken
		}
		return domain.Account{}, storeErr("create account", err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, storeErr("get account by id", err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.AccountWithPassword, error) {
	const q = `
		SELECT id, name, email, password_hash, role, status, email_verified, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`

	var (
		a      domain.AccountWithPassword
		idUUID pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, q, email).Scan(
		&idUUID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Status,
		&a.EmailVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccountWithPassword{}, domain.ErrNotFound
		}
		return domain.AccountWithPassword{}, storeErr("get account by email", err)
	}
	a.ID = uuidOrEmpty(idUUID)
	return a, nil
}

// ConsumeVerificationToken flips email_verified and clears the token pair in
// one conditional UPDATE. Of two racing calls with the same token, only the
// first matches a row; the second gets ErrTokenInvalid.
func (s *AccountsStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (domain.Account, error) {
	const q = `
		UPDATE accounts
		SET email_verified = true,
		    verification_token_hash = NULL,
		    verification_expires_at = NULL,
		    updated_at = now()
		WHERE verification_token_hash = $1 AND verification_expires_at > $2
		RETURNING ` + accountColumns

	a, err := scanAccount(s.pool.QueryRow(ctx, q, tokenHash, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrTokenInvalid
		}
		return domain.Account{}, storeErr("consume verification token", err)
	}
	return a, nil
}

func (s *AccountsStore) SetResetToken(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	const q = `
		UPDATE accounts
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, accountID, tokenHash, expiresAt)
	if err != nil {
		return storeErr("set reset token", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConsumeResetToken replaces the password hash and clears the token pair in
// one conditional UPDATE, same race discipline as verification.
func (s *AccountsStore) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.Account, error) {
	const q = `
		UPDATE accounts
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    updated_at = now()
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING ` + accountColumns

	a, err := scanAccount(s.pool.QueryRow(ctx, q, tokenHash, newPasswordHash, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrTokenInvalid
		}
		return domain.Account{}, storeErr("consume reset token", err)
	}
	return a, nil
}

// DecideAccount moves a pending account to its decided status. Decisions are
// one-directional: a row that already left pending is never updated again.
func (s *AccountsStore) DecideAccount(ctx context.Context, accountID string, decision domain.AccountStatus) (domain.Account, error) {
	const q = `
		UPDATE accounts
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + accountColumns

	a, err := scanAccount(s.pool.QueryRow(ctx, q, accountID, decision))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, storeErr("decide account", err)
	}

	// No pending row matched: distinguish missing from already decided.
	var status domain.AccountStatus
	err = s.pool.QueryRow(ctx, `SELECT status FROM accounts WHERE id = $1`, accountID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, storeErr("decide account", err)
	}
	return domain.Account{}, domain.ErrDecisionMade
}

func (s *AccountsStore) ListAccounts(ctx context.Context, status domain.AccountStatus, limit, offset int) ([]domain.Account, error) {
	const base = `SELECT ` + accountColumns + ` FROM accounts`

	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = s.pool.Query(ctx, base+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, base+` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	}
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("list accounts", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list accounts", err)
	}
	return accounts, nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a      domain.Account
		idUUID pgtype.UUID
	)
	err := row.Scan(
		&idUUID,
		&a.Name,
		&a.Email,
		&a.Role,
		&a.Status,
		&a.EmailVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	return a, nil
}

// storeErr keeps the driver detail for server-side logs while exposing only
// the retryable sentinel to callers.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
