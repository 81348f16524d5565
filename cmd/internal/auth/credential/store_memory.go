package credential

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when no database is configured and in
// tests. A single mutex spans each operation, so Swap observes and commits
// against one consistent state, matching the transactional Postgres semantics.
type MemoryStore struct {
	mu       sync.Mutex
	byDigest map[string]*Record
}

// NewMemoryStore constructs an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byDigest: make(map[string]*Record)}
}

// Create inserts a new credential record.
func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := rec
	s.byDigest[rec.TokenDigest] = &cp
	return nil
}

// FindByDigest loads a credential record by token digest.
func (s *MemoryStore) FindByDigest(ctx context.Context, digest string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byDigest[digest]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return *rec, nil
}

// Swap rotates oldDigest into newRec under the store mutex.
func (s *MemoryStore) Swap(ctx context.Context, now time.Time, oldDigest string, newRec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byDigest[oldDigest]
	if !ok || old.UserID != newRec.UserID {
		return Record{}, ErrRecordNotFound
	}

	if old.Revoked() && old.ReplacedByID != nil {
		s.revokeAllLocked(now, old.UserID)
		return Record{}, ErrReuseDetected
	}
	if old.Revoked() {
		return Record{}, ErrRecordRevoked
	}
	if !old.ExpiresAt.After(now) {
		return Record{}, ErrRecordExpired
	}

	cp := newRec
	s.byDigest[newRec.TokenDigest] = &cp

	at := now
	old.RevokedAt = &at
	old.ReplacedByID = &cp.ID

	return *old, nil
}

// Revoke marks the matching record revoked (idempotent).
func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, userID, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byDigest[digest]
	if !ok || rec.UserID != userID || rec.Revoked() {
		return nil
	}
	at := now
	rec.RevokedAt = &at
	return nil
}

// RevokeAllForUser revokes all records for a user (idempotent).
func (s *MemoryStore) RevokeAllForUser(ctx context.Context, now time.Time, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokeAllLocked(now, userID)
	return nil
}

func (s *MemoryStore) revokeAllLocked(now time.Time, userID string) {
	for _, rec := range s.byDigest {
		if rec.UserID != userID || rec.Revoked() {
			continue
		}
		at := now
		rec.RevokedAt = &at
	}
}

// DeleteExpired hard-deletes records past their expiry.
func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for digest, rec := range s.byDigest {
		if rec.ExpiresAt.Before(before) {
			delete(s.byDigest, digest)
			n++
		}
	}
	return n, nil
}
