// Package password provides Argon2id password hashing for Souq account login.
//
// Login is the operation that mints a fresh credential pair, so password
// verification sits directly in front of the token service.
package password
