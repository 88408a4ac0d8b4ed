package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// testClock is a movable clock shared between the test and the engine.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Rewind(d time.Duration) {
	c.Advance(-d)
}

// fakeAccounts is an in-memory AccountStore with the same compare-and-set
// Lock semantics the relational store provides.
type fakeAccounts struct {
	mu      sync.Mutex
	byID    map[string]Account
	byEmail map[string]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (f *fakeAccounts) Create(_ context.Context, a *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byEmail[a.Email]; ok {
		return ErrAccountExists
	}
	f.byID[a.ID] = *a
	f.byEmail[a.Email] = a.ID
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a := f.byID[id]
	return &a, nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return f.update(id, func(a *Account) { a.PasswordHash = passwordHash })
}

func (f *fakeAccounts) SetVerified(_ context.Context, id string) error {
	return f.update(id, func(a *Account) { a.Verified = true })
}

func (f *fakeAccounts) SetLastLogin(_ context.Context, id string, at time.Time) error {
	return f.update(id, func(a *Account) { a.LastLoginAt = &at })
}

func (f *fakeAccounts) Lock(_ context.Context, id string, until, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.byID[id]
	if !ok {
		return false, ErrAccountNotFound
	}
	if a.LockedUntil != nil && a.LockedUntil.After(now) {
		return false, nil
	}
	a.LockedUntil = &until
	f.byID[id] = a
	return true, nil
}

func (f *fakeAccounts) update(id string, fn func(*Account)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	fn(&a)
	f.byID[id] = a
	return nil
}

type fakeAttempts struct {
	mu   sync.Mutex
	rows []LoginAttempt
}

func (f *fakeAttempts) Record(_ context.Context, attempt *LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *attempt)
	return nil
}

func (f *fakeAttempts) ListRecent(_ context.Context, accountID string, limit, offset int) ([]LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []LoginAttempt
	for _, a := range f.rows {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAttempts) all() []LoginAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LoginAttempt, len(f.rows))
	copy(out, f.rows)
	return out
}

type fakeClaims struct {
	mu   sync.Mutex
	rows []SecurityClaim
}

func (f *fakeClaims) Create(_ context.Context, claim *SecurityClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *claim)
	return nil
}

func (f *fakeClaims) ListUnresolved(_ context.Context, accountID string) ([]SecurityClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []SecurityClaim
	for _, c := range f.rows {
		if c.AccountID == accountID && !c.Resolved {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeClaims) Resolve(_ context.Context, accountID, claimID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, c := range f.rows {
		if c.ID == claimID && c.AccountID == accountID && !c.Resolved {
			f.rows[i].Resolved = true
			f.rows[i].ResolvedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClaims) ofKind(kind ClaimKind) []SecurityClaim {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []SecurityClaim
	for _, c := range f.rows {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// fakeGeo resolves IPs from a static table. Unknown IPs fail.
type fakeGeo struct {
	byIP map[string]Location
}

func (f *fakeGeo) Resolve(_ context.Context, ip string) (*Location, error) {
	loc, ok := f.byIP[ip]
	if !ok {
		return nil, errors.New("ip not in table")
	}
	return &loc, nil
}

// captureQueue records enqueued events so tests can inspect delivery.
type captureQueue struct {
	mu     sync.Mutex
	events []SecurityEvent
}

func (q *captureQueue) Enqueue(_ context.Context, _ string, payload []byte) error {
	var event SecurityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

// waitFor polls until an event of the kind arrives for the account (any
// account when accountID is empty); dispatch is async. The newest matching
// event wins, so re-issued codes are observed correctly.
func (q *captureQueue) waitFor(t *testing.T, kind EventKind, accountID string) SecurityEvent {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		q.mu.Lock()
		for i := len(q.events) - 1; i >= 0; i-- {
			e := q.events[i]
			if e.Kind == kind && (accountID == "" || e.AccountID == accountID) {
				q.mu.Unlock()
				return e
			}
		}
		q.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q event arrived", kind)
	return SecurityEvent{}
}

func (q *captureQueue) count(kind EventKind) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// testFixture bundles the engine with every fake it was built from.
type testFixture struct {
	engine   *Engine
	clock    *testClock
	redis    *miniredis.Miniredis
	accounts *fakeAccounts
	attempts *fakeAttempts
	claims   *fakeClaims
	queue    *captureQueue
	geo      *fakeGeo
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("test-secret-key-material")
	// Cheap argon2 parameters keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	fix := &testFixture{
		clock:    newTestClock(),
		redis:    mr,
		accounts: newFakeAccounts(),
		attempts: &fakeAttempts{},
		claims:   &fakeClaims{},
		queue:    &captureQueue{},
		geo:      &fakeGeo{byIP: map[string]Location{}},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStores(fix.accounts, fix.attempts, fix.claims).
		WithGeoResolver(fix.geo).
		WithQueue(fix.queue).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	engine.clock = fix.clock.Now
	t.Cleanup(engine.Close)

	fix.engine = engine
	return fix
}

// seedAccount registers and verifies an account directly through the engine.
func (fix *testFixture) seedAccount(t *testing.T, email, pass string) *Account {
	t.Helper()

	ctx := context.Background()
	acct, err := fix.engine.Register(ctx, email, pass)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	event := fix.queue.waitFor(t, EventVerificationEmail, acct.ID)
	if err := fix.engine.VerifyEmail(ctx, acct.ID, event.Metadata["code"]); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return acct
}
