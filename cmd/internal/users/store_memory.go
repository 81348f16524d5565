package users

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store used when no database is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Row
	byEmail map[string]Row
}

// NewMemoryStore constructs an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Row),
		byEmail: make(map[string]Row),
	}
}

// Put inserts or replaces a user row.
func (s *MemoryStore) Put(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[row.ID] = row
	s.byEmail[strings.ToLower(row.Email)] = row
}

// FindByID loads a user row by id.
func (s *MemoryStore) FindByID(ctx context.Context, userID string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.byID[userID]
	if !ok {
		return Row{}, ErrNotFound
	}
	return row, nil
}

// FindByEmail loads a user row by email (case-insensitive).
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Row{}, ErrNotFound
	}
	return row, nil
}
