// Package password implements Argon2id credential hashing with PHC-formatted
// output and constant-time verification. Verification reads the cost
// parameters out of the stored hash, so old hashes keep verifying after the
// engine's configured costs change.
package password
