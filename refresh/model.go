package refresh

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// Reason defines a public type used by authkit APIs.
//
// Reason instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Reason uint8

// Revocation reasons form a closed set. The zero value is reserved so a
// zeroed blob never reads as a legitimately revoked record.
const (
	// ReasonNone is an exported constant or variable used by the authentication engine.
	ReasonNone Reason = 0
	// ReasonRotated is an exported constant or variable used by the authentication engine.
	ReasonRotated Reason = 1
	// ReasonLogout is an exported constant or variable used by the authentication engine.
	ReasonLogout Reason = 2
	// ReasonReuseSuspected is an exported constant or variable used by the authentication engine.
	ReasonReuseSuspected Reason = 3
	// ReasonRevokedReuse is an exported constant or variable used by the authentication engine.
	ReasonRevokedReuse Reason = 4
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r Reason) String() string {
	switch r {
	case ReasonRotated:
		return "rotated"
	case ReasonLogout:
		return "logout"
	case ReasonReuseSuspected:
		return "reuse suspected"
	case ReasonRevokedReuse:
		return "revoked token reuse"
	default:
		return "none"
	}
}

// Record is one issued refresh token: the hash of the raw token plus enough
// metadata to audit the family it belongs to. Revocation is monotonic; the
// Revoked flag only ever flips to true and Reason/RevokedAt are set exactly
// once, atomically, by the store.
type Record struct {
	ID        string
	AccountID string
	FamilyID  string

	TokenHash [32]byte

	Revoked   bool
	Reason    Reason
	RevokedAt int64

	CreatedAt int64
	ExpiresAt int64

	Device    string
	UserAgent string
	IP        string
}

// HashToken returns the deterministic digest stored in place of the raw
// refresh token. The raw token is a signed JWT carrying a random jti, so the
// preimage already has full entropy and the digest needs no salt.
func HashToken(raw string) [32]byte {
	return sha256.Sum256([]byte(raw))
}

// NewFamilyID mints the identifier shared by every rotation of one login.
func NewFamilyID() string {
	return uuid.NewString()
}

// NewRecordID mints a per-record identifier unique within a family.
func NewRecordID() string {
	return uuid.NewString()
}
