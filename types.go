package authcore

import (
	"context"
	"time"
)

// AttemptOutcome classifies a recorded login attempt.
type AttemptOutcome string

const (
	// OutcomeSuccess is an attempt that passed the lockout gate and the
	// credential check.
	OutcomeSuccess AttemptOutcome = "success"
	// OutcomeBadCredentials is an unknown email or a wrong password.
	OutcomeBadCredentials AttemptOutcome = "bad_credentials"
	// OutcomeLocked is an attempt rejected at the lockout gate, before any
	// credential or OTP material was touched.
	OutcomeLocked AttemptOutcome = "locked"
	// OutcomeOTPFailed is a failed OTP verification in a reset or
	// verification flow.
	OutcomeOTPFailed AttemptOutcome = "otp_failed"
)

// OTPPurpose namespaces one-time codes. One live record exists per
// (account, purpose) pair; issuing again overwrites it.
type OTPPurpose string

const (
	// PurposeVerifyEmail codes flip the account's verification flag.
	PurposeVerifyEmail OTPPurpose = "verify_email"
	// PurposePasswordReset codes authorize exactly one password-set call.
	PurposePasswordReset OTPPurpose = "password_reset"
)

// LockState is the lockout state machine's per-account state, derived lazily
// from the lockout-expiry timestamp at read time.
type LockState string

const (
	// StateActive allows credential checks to proceed.
	StateActive LockState = "active"
	// StateLocked rejects login and reset attempts until the expiry passes.
	StateLocked LockState = "locked"
)

// ClaimKind labels a SecurityClaim.
type ClaimKind string

const (
	// ClaimUnusualLocation is raised when a login arrives from a country
	// with no successful history. It never blocks the login by itself.
	ClaimUnusualLocation ClaimKind = "unusual_location"
	// ClaimRepeatedFailures is raised when repeated OTP failures in a reset
	// or verification flow trip the lockout threshold.
	ClaimRepeatedFailures ClaimKind = "repeated_failures"
	// ClaimLockoutTriggered is raised by the lockout transition on the
	// login path.
	ClaimLockoutTriggered ClaimKind = "lockout_triggered"
)

// Account is the identity record the engine gates. The engine mutates only
// the lockout fields, the password hash, the verification flag, and the
// last-login stamp; everything else belongs to the account subsystem.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	LockedUntil  *time.Time
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// LockedAt reports whether the account is inside its lockout window at the
// given instant. The state machine is pull-based: an expired window means
// active, with no background sweep or unlocking write required.
func (a *Account) LockedAt(now time.Time) bool {
	return a != nil && a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Location is a best-effort geolocation result. A nil Location on an attempt
// means the lookup failed or timed out; the attempt is recorded regardless.
type Location struct {
	Country     string
	CountryCode string
	Region      string
	City        string
}

// LoginAttempt is an immutable audit record, created once per attempt and
// never edited or deleted afterward.
type LoginAttempt struct {
	ID        string
	AccountID string // empty when the email resolved to no account
	Email     string
	IP        string
	Location  *Location
	Outcome   AttemptOutcome
	UserAgent string
	CreatedAt time.Time
}

// SecurityClaim is a recorded, user-visible security event pending
// acknowledgement by the account owner.
type SecurityClaim struct {
	ID          string
	AccountID   string
	Kind        ClaimKind
	Description string
	AttemptID   string
	IP          string
	Location    *Location
	Resolved    bool
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}

// TokenPair is a freshly issued access/refresh pair. Both tokens are signed
// and self-describing; only the refresh token's id is ever tracked
// server-side, and only once revoked.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// EventKind names an async security-event job. The queue consumer owns
// delivery, retries, and backoff.
type EventKind string

const (
	// EventVerificationEmail carries a freshly issued verify_email code.
	EventVerificationEmail EventKind = "email.verification"
	// EventPasswordResetEmail carries a freshly issued password_reset code.
	EventPasswordResetEmail EventKind = "email.password_reset"
	// EventUnusualLocation alerts the owner to a login from a new country.
	EventUnusualLocation EventKind = "security.unusual_location"
	// EventLockoutTriggered alerts the owner that the account locked.
	EventLockoutTriggered EventKind = "security.lockout_triggered"
)

// SecurityEvent is the payload handed to the Queue collaborator.
type SecurityEvent struct {
	Kind       EventKind         `json:"kind"`
	AccountID  string            `json:"account_id"`
	Email      string            `json:"email"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AccountStore is the relational contract for Account rows. Implementations
// must make Lock a true compare-and-set: it writes the lockout fields only
// if the account is not currently locked at `now`, and reports whether this
// caller performed the transition.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerified(ctx context.Context, id string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	Lock(ctx context.Context, id string, until, now time.Time) (bool, error)
}

// AttemptStore persists LoginAttempt rows and serves recent-history reads,
// newest first. Writes must be visible to an immediately following
// ListRecent on the same store (read-your-write).
type AttemptStore interface {
	Record(ctx context.Context, attempt *LoginAttempt) error
	ListRecent(ctx context.Context, accountID string, limit, offset int) ([]LoginAttempt, error)
}

// ClaimStore persists SecurityClaim rows.
type ClaimStore interface {
	Create(ctx context.Context, claim *SecurityClaim) error
	ListUnresolved(ctx context.Context, accountID string) ([]SecurityClaim, error)
	Resolve(ctx context.Context, accountID, claimID string, at time.Time) (bool, error)
}

// GeoResolver resolves a source IP to a coarse location. Implementations may
// hit the network; the engine wraps every call in a hard timeout and treats
// any error as "no location".
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// Queue is the async job collaborator: at-least-once delivery, consumer-side
// retries with exponential backoff. The engine never waits on delivery
// confirmation.
type Queue interface {
	Enqueue(ctx context.Context, kind string, payload []byte) error
}
