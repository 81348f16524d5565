package credential

import (
	"context"
	"time"
)

// Record mirrors a souq.credentials row: the persisted, revocable side of a
// refresh credential. Access credentials are never persisted.
type Record struct {
	ID           string
	UserID       string
	TokenDigest  string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	ReplacedByID *string
}

// Revoked reports whether the record has been soft-deleted.
func (r Record) Revoked() bool { return r.RevokedAt != nil }

// Store abstracts persistence for credential records.
//
// Implementations must make Swap atomic: a failed rotation must leave the old
// record untouched, and a successful one must insert the replacement and
// revoke the original as one observable step.
type Store interface {
	// Create inserts a new record.
	Create(ctx context.Context, rec Record) error

	// FindByDigest loads a record by token digest. Returns ErrRecordNotFound when absent.
	FindByDigest(ctx context.Context, digest string) (Record, error)

	// Swap performs the rotation exchange: it locks the record matching
	// oldDigest, validates it (same user as newRec, not revoked, not expired
	// at "now"), inserts newRec, and marks the old record revoked with
	// ReplacedByID = newRec.ID. It returns the old record on success.
	//
	// Reuse handling: when the old record is already revoked AND replaced,
	// every record of that user is revoked and ErrReuseDetected is returned.
	Swap(ctx context.Context, now time.Time, oldDigest string, newRec Record) (Record, error)

	// Revoke marks the record matching (userID, digest) revoked. Idempotent:
	// revoking an already-revoked or nonexistent record is a no-op success.
	Revoke(ctx context.Context, now time.Time, userID, digest string) error

	// RevokeAllForUser revokes every record of a user (logout everywhere,
	// reuse incident response). Idempotent.
	RevokeAllForUser(ctx context.Context, now time.Time, userID string) error

	// DeleteExpired hard-deletes records whose expiry is before the cutoff
	// and returns the number of rows removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
