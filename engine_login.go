package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexuslabs/authcore/password"
)

// Login runs the full credential pipeline for one attempt: lockout gate,
// password check, attempt recording, anomaly evaluation, and token issuance.
// ip and userAgent feed the audit trail and the geo-anomaly rule; either may
// be empty.
//
// Failures collapse to ErrInvalidCredentials for unknown emails and wrong
// passwords alike, and to ErrAccountLocked while the lockout window holds.
func (e *Engine) Login(ctx context.Context, email, plainPassword, ip, userAgent string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	now := e.clock()

	acct, err := e.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		// Recorded without an account id so a later registration does not
		// inherit pre-registration noise.
		loc := e.resolveLocation(ctx, ip)
		if _, rerr := e.recordAttempt(ctx, "", email, ip, userAgent, OutcomeBadCredentials, loc); rerr != nil {
			return nil, rerr
		}
		e.countMetric(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}

	loc := e.resolveLocation(ctx, ip)

	if acct.LockedAt(now) {
		if _, rerr := e.recordAttempt(ctx, acct.ID, email, ip, userAgent, OutcomeLocked, loc); rerr != nil {
			return nil, rerr
		}
		e.countMetric(MetricLoginLocked)
		return nil, ErrAccountLocked
	}

	if err := e.hasher.Verify(plainPassword, acct.PasswordHash); err != nil {
		if !errors.Is(err, password.ErrHashMismatch) {
			return nil, fmt.Errorf("verify password: %w", err)
		}
		attempt, rerr := e.recordAttempt(ctx, acct.ID, email, ip, userAgent, OutcomeBadCredentials, loc)
		if rerr != nil {
			return nil, rerr
		}
		e.countMetric(MetricLoginFailure)
		if rerr := e.evaluateAndReact(ctx, acct, attempt, ClaimLockoutTriggered); rerr != nil {
			return nil, rerr
		}
		return nil, ErrInvalidCredentials
	}

	attempt, err := e.recordAttempt(ctx, acct.ID, email, ip, userAgent, OutcomeSuccess, loc)
	if err != nil {
		return nil, err
	}
	if err := e.evaluateAndReact(ctx, acct, attempt, ClaimLockoutTriggered); err != nil {
		return nil, err
	}

	if err := e.accounts.SetLastLogin(ctx, acct.ID, now); err != nil {
		return nil, err
	}

	pair, err := e.issuePair(acct.ID, now)
	if err != nil {
		return nil, err
	}
	e.countMetric(MetricLoginSuccess)
	return pair, nil
}

// recordAttempt persists one immutable audit row.
func (e *Engine) recordAttempt(ctx context.Context, accountID, email, ip, userAgent string, outcome AttemptOutcome, loc *Location) (*LoginAttempt, error) {
	attempt := &LoginAttempt{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Email:     email,
		IP:        ip,
		Location:  loc,
		Outcome:   outcome,
		UserAgent: userAgent,
		CreatedAt: e.clock(),
	}
	if err := e.attempts.Record(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// evaluateAndReact runs the anomaly rules over the account's recent history
// (which includes the attempt just recorded) and applies whatever verdicts
// fire: the lockout transition, the unusual-location claim, or both.
func (e *Engine) evaluateAndReact(ctx context.Context, acct *Account, attempt *LoginAttempt, lockoutClaim ClaimKind) error {
	history, err := e.attempts.ListRecent(ctx, acct.ID, e.config.Anomaly.HistoryLimit, 0)
	if err != nil {
		return err
	}

	v := evaluateAttempt(history, *attempt, e.config.Lockout, e.config.Anomaly, e.clock())

	if v.unusualLocation {
		if err := e.raiseUnusualLocation(ctx, acct, attempt); err != nil {
			return err
		}
	}
	if v.lockout {
		if err := e.triggerLockout(ctx, acct, attempt, lockoutClaim); err != nil {
			return err
		}
	}
	return nil
}

// triggerLockout attempts the active→locked transition. The store's
// compare-and-set decides races: of N concurrent failures crossing the
// threshold, exactly one caller wins the write and raises the claim.
func (e *Engine) triggerLockout(ctx context.Context, acct *Account, attempt *LoginAttempt, kind ClaimKind) error {
	now := e.clock()
	until := now.Add(e.config.Lockout.Duration)

	won, err := e.accounts.Lock(ctx, acct.ID, until, now)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	claim := &SecurityClaim{
		ID:          uuid.NewString(),
		AccountID:   acct.ID,
		Kind:        kind,
		Description: "account locked after repeated failed attempts",
		AttemptID:   attempt.ID,
		IP:          attempt.IP,
		Location:    attempt.Location,
		CreatedAt:   now,
	}
	if err := e.claims.Create(ctx, claim); err != nil {
		return err
	}

	e.countMetric(MetricLockoutTriggered)
	e.logger.Info("account locked",
		zap.String("account_id", acct.ID),
		zap.Time("until", until),
	)
	e.emitEvent(ctx, EventLockoutTriggered, acct, map[string]string{
		"ip":           attempt.IP,
		"locked_until": strconv.FormatInt(until.Unix(), 10),
	})
	return nil
}

// raiseUnusualLocation records the geo-anomaly claim and alerts the owner.
// Advisory only: the login that raised it proceeds.
func (e *Engine) raiseUnusualLocation(ctx context.Context, acct *Account, attempt *LoginAttempt) error {
	desc := "login from new location"
	country := ""
	if attempt.Location != nil {
		country = attempt.Location.Country
		if attempt.Location.City != "" {
			desc = fmt.Sprintf("login from new location: %s, %s", attempt.Location.City, country)
		} else {
			desc = fmt.Sprintf("login from new location: %s", country)
		}
	}

	claim := &SecurityClaim{
		ID:          uuid.NewString(),
		AccountID:   acct.ID,
		Kind:        ClaimUnusualLocation,
		Description: desc,
		AttemptID:   attempt.ID,
		IP:          attempt.IP,
		Location:    attempt.Location,
		CreatedAt:   e.clock(),
	}
	if err := e.claims.Create(ctx, claim); err != nil {
		return err
	}

	e.countMetric(MetricUnusualLocation)
	e.emitEvent(ctx, EventUnusualLocation, acct, map[string]string{
		"ip":      attempt.IP,
		"country": country,
	})
	return nil
}
