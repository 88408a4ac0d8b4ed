package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nexuslabs/authcore"
)

// AccountStore persists Account rows.
type AccountStore struct {
	db DB
}

// NewAccountStore wires the store over db.
func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, email, password_hash, verified, locked_until, created_at, last_login_at`

// Create inserts a new account row.
func (s *AccountStore) Create(ctx context.Context, a *authcore.Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, verified, locked_until, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Email, a.PasswordHash, a.Verified, a.LockedUntil, a.CreatedAt, a.LastLoginAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return authcore.ErrAccountExists
		}
		return storeErr("create account", err)
	}
	return nil
}

// GetByID fetches one account by id.
func (s *AccountStore) GetByID(ctx context.Context, id string) (*authcore.Account, error) {
	return s.get(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
}

// GetByEmail fetches one account by its case-normalized email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return s.get(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
	`, email)
}

func (s *AccountStore) get(ctx context.Context, query, arg string) (*authcore.Account, error) {
	var a authcore.Account
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Verified, &a.LockedUntil, &a.CreatedAt, &a.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, storeErr("get account", err)
	}
	return &a, nil
}

// UpdatePassword replaces the password hash.
func (s *AccountStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $2 WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return storeErr("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// SetVerified flips the verification flag on.
func (s *AccountStore) SetVerified(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET verified = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return storeErr("set verified", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// SetLastLogin stamps a successful login.
func (s *AccountStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE accounts SET last_login_at = $2 WHERE id = $1
	`, id, at); err != nil {
		return storeErr("set last login", err)
	}
	return nil
}

// Lock is the active→locked compare-and-set. The WHERE clause only matches
// an account that is not currently locked at `now`, so of any number of
// concurrent failing requests exactly one observes RowsAffected == 1 and
// owns the claim/alert side effects.
func (s *AccountStore) Lock(ctx context.Context, id string, until, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts
		SET locked_until = $2
		WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $3)
	`, id, until, now)
	if err != nil {
		return false, storeErr("lock account", err)
	}
	return tag.RowsAffected() == 1, nil
}
