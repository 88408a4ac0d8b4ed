package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordAttempts(t *testing.T, fix *testFixture, accountID string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		fix.clock.Advance(time.Second)
		_, err := fix.engine.recordAttempt(context.Background(), accountID, "alice@example.com", "203.0.113.10", "", OutcomeSuccess, nil)
		if err != nil {
			t.Fatalf("recordAttempt failed: %v", err)
		}
	}
}

func TestRecentAttemptsPagesAndCaps(t *testing.T) {
	fix := newTestEngine(t, func(cfg *Config) {
		cfg.History.RecentLimit = 5
		cfg.History.PageSize = 2
	})
	ctx := context.Background()

	acct := fix.seedAccount(t, "alice@example.com", "correct-horse")
	recordAttempts(t, fix, acct.ID, 8)

	var got []LoginAttempt
	for attempt, err := range fix.engine.RecentAttempts(ctx, acct.ID) {
		if err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		got = append(got, attempt)
	}

	if len(got) != 5 {
		t.Fatalf("got %d attempts, want the cap of 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatal("attempts must arrive newest first")
		}
	}
}

func TestRecentAttemptsEarlyBreak(t *testing.T) {
	fix := newTestEngine(t, nil)
	ctx := context.Background()

	acct := fix.seedAccount(t, "alice@example.com", "correct-horse")
	recordAttempts(t, fix, acct.ID, 6)

	n := 0
	for _, err := range fix.engine.RecentAttempts(ctx, acct.ID) {
		if err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("broke after %d, want 2", n)
	}
}

func TestRecentAttemptsRestarts(t *testing.T) {
	fix := newTestEngine(t, nil)
	ctx := context.Background()

	acct := fix.seedAccount(t, "alice@example.com", "correct-horse")
	recordAttempts(t, fix, acct.ID, 3)

	seq := fix.engine.RecentAttempts(ctx, acct.ID)

	count := func() int {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("iteration failed: %v", err)
			}
			n++
		}
		return n
	}

	first, second := count(), count()
	if first != 3 || second != 3 {
		t.Fatalf("restarted sequence yielded %d then %d, want 3 and 3", first, second)
	}
}

func TestResolveClaim(t *testing.T) {
	fix := newTestEngine(t, nil)
	ctx := context.Background()

	acct := fix.seedAccount(t, "alice@example.com", "correct-horse")
	other := fix.seedAccount(t, "bob@example.com", "correct-horse")

	for i := 0; i < fix.engine.config.Lockout.Threshold; i++ {
		_, _ = fix.engine.Login(ctx, "alice@example.com", "wrong", "", "")
	}

	open, err := fix.engine.UnresolvedClaims(ctx, acct.ID)
	if err != nil || len(open) != 1 {
		t.Fatalf("UnresolvedClaims = (%d, %v), want one claim", len(open), err)
	}
	claimID := open[0].ID

	// A foreign account cannot acknowledge someone else's claim.
	if ok, err := fix.engine.ResolveClaim(ctx, other.ID, claimID); err != nil || ok {
		t.Fatalf("foreign resolve = (%v, %v), want false", ok, err)
	}

	if ok, err := fix.engine.ResolveClaim(ctx, acct.ID, claimID); err != nil || !ok {
		t.Fatalf("resolve = (%v, %v), want true", ok, err)
	}
	// Resolution is permanent and idempotent in effect, not in report.
	if ok, err := fix.engine.ResolveClaim(ctx, acct.ID, claimID); err != nil || ok {
		t.Fatalf("second resolve = (%v, %v), want false", ok, err)
	}

	open, err = fix.engine.UnresolvedClaims(ctx, acct.ID)
	if err != nil || len(open) != 0 {
		t.Fatalf("after resolve: UnresolvedClaims = (%d, %v), want none", len(open), err)
	}
}

func TestLockoutStateUnknownAccount(t *testing.T) {
	fix := newTestEngine(t, nil)

	if _, _, err := fix.engine.LockoutState(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
