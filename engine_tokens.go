package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexuslabs/authcore/internal/blacklist"
	"github.com/nexuslabs/authcore/jwt"
)

// issuePair signs a fresh access/refresh pair. The refresh token carries a
// unique id; nothing is written anywhere until that id is revoked.
func (e *Engine) issuePair(accountID string, now time.Time) (*TokenPair, error) {
	access, accessExp, err := e.tokens.CreateAccess(accountID, now)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := e.tokens.CreateRefresh(accountID, uuid.NewString(), now)
	if err != nil {
		return nil, err
	}

	e.countMetric(MetricTokenIssued)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateAccess checks an access token statelessly and returns the account
// id it was issued to. No store is consulted; a token is good until expiry.
func (e *Engine) ValidateAccess(token string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	accountID, err := e.tokens.ParseAccess(token)
	if err != nil {
		return "", mapTokenErr(err)
	}
	return accountID, nil
}

// Refresh rotates a refresh token: the presented token's id is retired and a
// brand-new pair is issued. Retirement is first-writer-wins, so of two
// concurrent exchanges of the same token exactly one receives a pair and the
// other sees ErrTokenRevoked. A token already revoked or past expiry never
// rotates.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	accountID, tokenID, exp, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, mapTokenErr(err)
	}

	now := e.clock()
	won, err := e.blacklist.AddNX(ctx, tokenID, exp.Sub(now))
	if err != nil {
		return nil, mapBlacklistErr(err)
	}
	if !won {
		e.countMetric(MetricRefreshReuse)
		return nil, ErrTokenRevoked
	}

	pair, err := e.issuePair(accountID, now)
	if err != nil {
		return nil, err
	}
	e.countMetric(MetricRefreshSuccess)
	return pair, nil
}

// Revoke blacklists a refresh token's id for the token's remaining lifetime.
// Idempotent: revoking an already revoked or already expired token succeeds.
// Logout is just Revoke on the session's refresh token.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	_, tokenID, exp, err := e.tokens.ParseRefreshAllowExpired(refreshToken)
	if err != nil {
		return mapTokenErr(err)
	}

	if err := e.blacklist.Add(ctx, tokenID, exp.Sub(e.clock())); err != nil {
		return mapBlacklistErr(err)
	}
	e.countMetric(MetricTokenRevoked)
	return nil
}

func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}

func mapBlacklistErr(err error) error {
	if errors.Is(err, blacklist.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return err
}
