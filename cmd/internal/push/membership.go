package push

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipStore is the authorization boundary for conversation membership.
// A connection is admitted into a conversation's set only after this check.
type MembershipStore interface {
	// IsMember reports whether userID participates in conversationID.
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)

	// ConversationIDs lists every conversation userID participates in
	// (the "subscribe to everything" mode).
	ConversationIDs(ctx context.Context, userID string) ([]string, error)
}

// PostgresMembershipStore checks membership via souq.conversation_members.
type PostgresMembershipStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMembershipStore constructs a membership store backed by PostgreSQL.
func NewPostgresMembershipStore(pool *pgxpool.Pool) (*PostgresMembershipStore, error) {
	if pool == nil {
		return nil, errors.New("push: nil pool")
	}
	return &PostgresMembershipStore{pool: pool}, nil
}

// IsMember checks if userID is a member of conversationID.
func (s *PostgresMembershipStore) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	conversationID = strings.TrimSpace(conversationID)
	if userID == "" || conversationID == "" {
		return false, nil
	}

	var one int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM souq.conversation_members
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ConversationIDs lists the conversations userID belongs to.
func (s *PostgresMembershipStore) ConversationIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id FROM souq.conversation_members
		WHERE user_id = $1
	`, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MemoryMembershipStore is the in-memory MembershipStore for db-less dev mode
// and tests.
type MemoryMembershipStore struct {
	mu     sync.RWMutex
	byConv map[string]map[string]struct{}
	byUser map[string]map[string]struct{}
}

// NewMemoryMembershipStore constructs an empty in-memory membership store.
func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{
		byConv: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Add records userID as a member of conversationID.
func (s *MemoryMembershipStore) Add(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byConv[conversationID] == nil {
		s.byConv[conversationID] = make(map[string]struct{})
	}
	s.byConv[conversationID][userID] = struct{}{}

	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][conversationID] = struct{}{}
}

// IsMember checks if userID is a member of conversationID.
func (s *MemoryMembershipStore) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byConv[conversationID][userID]
	return ok, nil
}

// ConversationIDs lists the conversations userID belongs to.
func (s *MemoryMembershipStore) ConversationIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		out = append(out, id)
	}
	return out, nil
}
