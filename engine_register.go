package authcore

import (
	"context"

	"github.com/google/uuid"
)

// Register creates an unverified account and issues a verification code,
// delivered through the queue collaborator. The plaintext code never appears
// in the return value, logs, or any store.
func (e *Engine) Register(ctx context.Context, email, plainPassword string) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)

	hash, err := e.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    e.clock(),
	}
	// The store's unique index is the arbiter; a pre-check would still race.
	if err := e.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}

	if err := e.sendVerification(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// ResendVerification issues a fresh verification code for an unverified
// account, replacing any live one. Verified accounts are a no-op.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if acct.Verified {
		return nil
	}
	return e.sendVerification(ctx, acct)
}

func (e *Engine) sendVerification(ctx context.Context, acct *Account) error {
	code, err := e.issueOTP(ctx, acct.ID, PurposeVerifyEmail)
	if err != nil {
		return err
	}
	e.emitEvent(ctx, EventVerificationEmail, acct, map[string]string{"code": code})
	return nil
}

// VerifyEmail consumes a verification code and flips the account's verified
// flag. The code is single-use: success, exhaustion, and expiry all end the
// record's life.
func (e *Engine) VerifyEmail(ctx context.Context, accountID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.verifyOTP(ctx, accountID, PurposeVerifyEmail, code); err != nil {
		return err
	}
	return e.accounts.SetVerified(ctx, accountID)
}
