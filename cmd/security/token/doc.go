// Package token provides credential hashing primitives for Souq.
//
// It is the single source of truth for refresh-credential hashing behavior:
// the credential store never sees plaintext refresh tokens, only stable
// 64-char hex digests produced here.
//
// Modes:
// - Dev/back-compat: SHA-256(token) when no HMAC key is configured.
// - Production: HMAC-SHA256(token, key) when SOUQ_TOKEN_HMAC_KEY is set.
package token
