// Package authcore is the authentication security engine of the Nexus
// e-commerce backend: one-time-password issuance and verification,
// login-attempt tracking with anomaly detection, account lockout, and
// access/refresh token lifecycle management.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build], and every state mutation that feeds an authorization
// decision goes through an atomic primitive on one of the two shared stores
// (Redis for ephemeral secrets and blacklists, Postgres for accounts,
// attempts, and claims) rather than an in-process lock, so multiple service
// instances can run side by side.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the sentinel error taxonomy, and value types (Account, LoginAttempt,
// SecurityClaim, TokenPair). Coordination machinery — the ephemeral OTP
// store, the revoked-token blacklist, the async security-event dispatcher —
// lives under internal/ and is never exported. Reusable building blocks that
// an API layer may want directly (jwt, password, geo, postgres, queue) are
// topic subpackages.
//
// # What this package must NOT do
//
//   - Decide anything beyond "is this login/reset/refresh allowed" and "which
//     security event fires". Routing, serialization, and user-facing response
//     wording belong to the API layer.
//   - Block an authorization decision on the notification path. Event
//     delivery is enqueue-and-return; failures are the consumer's retries.
//   - Log, persist, or transport plaintext OTP codes or token material.
package authcore
