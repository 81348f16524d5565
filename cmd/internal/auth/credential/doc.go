// Package credential owns the token lifecycle for Souq: minting, verifying,
// rotating, and revoking paired access/refresh credentials.
//
// Both halves of a pair are signed tokens carrying the same subject with
// independent expiry. Access tokens are verified statelessly (no store I/O on
// the hot path). Refresh tokens are additionally backed by a revocable store
// record keyed by token digest; rotation is a single-use exchange performed
// atomically against that store.
package credential
