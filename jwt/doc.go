// Package jwt wraps token signing and verification for the authentication
// engine. It supports ed25519 (recommended) and HS256, stamps access and
// refresh tokens with a type tag, and collapses verification failures into
// two sentinels so callers never branch on library internals.
package jwt
