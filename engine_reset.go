package authcore

import (
	"context"
	"errors"
)

// RequestPasswordReset issues a reset code for the account behind the email
// and delivers it through the queue collaborator. An unknown email is a
// silent no-op, so the call reveals nothing about which addresses exist.
// A locked account is refused: lockout gates the reset flow too.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if acct.LockedAt(e.clock()) {
		return ErrAccountLocked
	}

	code, err := e.issueOTP(ctx, acct.ID, PurposePasswordReset)
	if err != nil {
		return err
	}
	e.emitEvent(ctx, EventPasswordResetEmail, acct, map[string]string{"code": code})
	return nil
}

// ConfirmPasswordReset consumes a reset code and, on a match, sets the new
// password. Failed codes are recorded as otp_failed attempts and count
// toward the lockout threshold exactly like wrong passwords, so a reset
// code cannot be brute-forced past the same gate.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword, ip, userAgent string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	acct, err := e.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		// Same shape as a dead code, so probing emails here learns nothing.
		return ErrOTPExpired
	}
	if err != nil {
		return err
	}

	now := e.clock()
	if acct.LockedAt(now) {
		loc := e.resolveLocation(ctx, ip)
		if _, rerr := e.recordAttempt(ctx, acct.ID, email, ip, userAgent, OutcomeLocked, loc); rerr != nil {
			return rerr
		}
		e.countMetric(MetricLoginLocked)
		return ErrAccountLocked
	}

	if err := e.verifyOTP(ctx, acct.ID, PurposePasswordReset, code); err != nil {
		if errors.Is(err, ErrOTPMismatch) || errors.Is(err, ErrOTPExhausted) {
			loc := e.resolveLocation(ctx, ip)
			attempt, rerr := e.recordAttempt(ctx, acct.ID, email, ip, userAgent, OutcomeOTPFailed, loc)
			if rerr != nil {
				return rerr
			}
			if rerr := e.evaluateAndReact(ctx, acct, attempt, ClaimRepeatedFailures); rerr != nil {
				return rerr
			}
		}
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return e.accounts.UpdatePassword(ctx, acct.ID, hash)
}
