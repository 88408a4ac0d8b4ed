package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned when the email is unknown or the
	// password does not match. API layers should present it with the same
	// message as ErrAccountLocked so responses do not leak account state.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the account's lockout window is
	// active. Deliberately indistinguishable from ErrInvalidCredentials in
	// user-facing wording; the recorded attempt outcome keeps them apart
	// for audit.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountExists is returned by Register for a duplicate email.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when an account lookup by id or email
	// finds nothing.
	ErrAccountNotFound = errors.New("account not found")

	// ErrOTPExpired is returned when no live OTP record exists for the
	// (account, purpose) pair, whether it expired or was never issued.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPMismatch is returned when the supplied code does not match the
	// stored digest and attempts remain.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrOTPExhausted is returned once the attempt bound is exceeded. The
	// record is invalidated; the caller must re-issue.
	ErrOTPExhausted = errors.New("otp attempts exhausted")

	// ErrTokenInvalid is returned for malformed tokens or bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-formed token past its lifetime.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a refresh token's id is blacklisted,
	// including the loser of a concurrent double-exchange.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrDependencyUnavailable wraps Redis/Postgres failures. The engine
	// cannot make a safe authorization decision without its state, so these
	// surface to the caller as 5xx-class failures instead of allowing login.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrEngineNotReady is returned when an Engine is used before Build
	// completed or after required collaborators were omitted.
	ErrEngineNotReady = errors.New("engine not initialized")
)
