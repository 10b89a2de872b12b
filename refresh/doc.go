// Package refresh persists refresh-token records in Redis, one record per
// issued token, indexed by rotation family. Records are stored as versioned
// binary blobs whose revocation header lives at fixed offsets so Lua scripts
// can compare-and-swap the revoked flag without decoding the whole record.
//
// The store never sees raw tokens. Callers store and match SHA-256 digests;
// the engine owns the constant-time comparison.
package refresh
