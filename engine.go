package authcore

import (
	"context"
	"encoding/json"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexuslabs/authcore/internal/blacklist"
	"github.com/nexuslabs/authcore/internal/notify"
	"github.com/nexuslabs/authcore/internal/otp"
	"github.com/nexuslabs/authcore/jwt"
	"github.com/nexuslabs/authcore/password"
)

// Engine is the authentication security core. Construct one with a Builder;
// all methods are safe for concurrent use.
type Engine struct {
	config Config

	accounts AccountStore
	attempts AttemptStore
	claims   ClaimStore
	geo      GeoResolver

	hasher    *password.Argon2
	tokens    *jwt.Manager
	otpStore  *otp.Store
	blacklist *blacklist.Store
	notifier  *notify.Dispatcher
	metrics   *Metrics
	logger    *zap.Logger

	clock func() time.Time
}

// Close drains and stops the event dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notifier.Close()
}

// Metrics returns a point-in-time copy of the engine counters. All zeros when
// metrics are disabled.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// EventsDropped reports how many security events were discarded because the
// dispatch buffer was full.
func (e *Engine) EventsDropped() uint64 {
	return e.notifier.Dropped()
}

func (e *Engine) ready() error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) countMetric(id MetricID) {
	e.metrics.Inc(id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LockoutState derives the account's lockout state at the current instant.
// A non-nil until is returned only in the locked state.
func (e *Engine) LockoutState(ctx context.Context, accountID string) (LockState, *time.Time, error) {
	if err := e.ready(); err != nil {
		return "", nil, err
	}

	acct, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", nil, err
	}
	if acct.LockedAt(e.clock()) {
		until := *acct.LockedUntil
		return StateLocked, &until, nil
	}
	return StateActive, nil, nil
}

// RecentAttempts returns the account's attempt history, newest first, capped
// at the configured limit. The sequence pages through the store lazily; a
// store failure surfaces as the final element's error. Re-ranging the
// sequence restarts from the newest attempt.
func (e *Engine) RecentAttempts(ctx context.Context, accountID string) iter.Seq2[LoginAttempt, error] {
	return func(yield func(LoginAttempt, error) bool) {
		if err := e.ready(); err != nil {
			yield(LoginAttempt{}, err)
			return
		}

		limit := e.config.History.RecentLimit
		offset := 0
		for offset < limit {
			n := e.config.History.PageSize
			if offset+n > limit {
				n = limit - offset
			}

			batch, err := e.attempts.ListRecent(ctx, accountID, n, offset)
			if err != nil {
				yield(LoginAttempt{}, err)
				return
			}
			for _, attempt := range batch {
				if !yield(attempt, nil) {
					return
				}
			}
			if len(batch) < n {
				return
			}
			offset += n
		}
	}
}

// UnresolvedClaims lists the account's open security claims, newest first.
func (e *Engine) UnresolvedClaims(ctx context.Context, accountID string) ([]SecurityClaim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.claims.ListUnresolved(ctx, accountID)
}

// ResolveClaim marks one claim acknowledged by the account owner. The
// account id must match the claim's owner; resolving an already resolved or
// foreign claim reports false.
func (e *Engine) ResolveClaim(ctx context.Context, accountID, claimID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.claims.Resolve(ctx, accountID, claimID, e.clock())
}

// resolveLocation performs the best-effort geolocation lookup under a hard
// timeout. Any failure degrades to nil; the caller proceeds regardless.
func (e *Engine) resolveLocation(ctx context.Context, ip string) *Location {
	if e.geo == nil || ip == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Geo.LookupTimeout)
	defer cancel()

	loc, err := e.geo.Resolve(ctx, ip)
	if err != nil {
		e.countMetric(MetricGeoLookupFailed)
		e.logger.Warn("geolocation lookup degraded", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	return loc
}

// emitEvent hands a security event to the async dispatcher. Never blocks,
// never fails; a full buffer drops the event and bumps a counter.
func (e *Engine) emitEvent(ctx context.Context, kind EventKind, acct *Account, metadata map[string]string) {
	event := SecurityEvent{
		Kind:       kind,
		OccurredAt: e.clock(),
		Metadata:   metadata,
	}
	if acct != nil {
		event.AccountID = acct.ID
		event.Email = acct.Email
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("security event marshal failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	before := e.notifier.Dropped()
	e.notifier.Emit(ctx, notify.Event{Kind: string(kind), Payload: payload})
	if e.notifier.Dropped() > before {
		e.countMetric(MetricEventDropped)
	}
}
