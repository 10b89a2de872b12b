// Package authkit is the authentication core of the coaching platform backend.
// It verifies credentials, issues JWT access tokens, and runs a rotating
// refresh-token protocol with family-based theft detection on top of a
// Redis-backed token record store.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// the closed error taxonomy, and value types (TokenPair, TokenPayload,
// MetricsSnapshot). Token signing lives in jwt/, password hashing in
// password/, and refresh-record persistence in refresh/. The user database is
// never owned here; callers plug it in through [UserStore].
//
// # What this package must NOT do
//
//   - Expose Redis clients, record encoding, or signing keys in its public API.
//   - Leak storage or transport errors across the Engine boundary; callers
//     only ever see the sentinel taxonomy in errors.go.
//   - Run background tasks, timers, or long-lived connections. Every Engine
//     method is a request-scoped unit of work; the one exception is the
//     opt-in audit dispatcher goroutine, stopped by [Engine.Close].
//
// # Security contract
//
// Refresh is the critical path. A presented token that cannot be matched to a
// stored record, or that matches an already-revoked record, kills its whole
// token family before the error is returned, so the exploit window is closed
// even if the caller drops the error.
package authkit
