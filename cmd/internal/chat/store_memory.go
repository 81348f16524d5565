package chat

import (
	"context"
	"sync"
)

// MemoryStore is the in-memory MessageStore for db-less dev mode and tests.
type MemoryStore struct {
	mu     sync.Mutex
	byConv map[string][]Message          // conversation id -> messages in seq order
	byKey  map[string]map[string]Message // conversation id -> client msg id -> message
}

// NewMemoryStore constructs an empty in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byConv: make(map[string][]Message),
		byKey:  make(map[string]map[string]Message),
	}
}

// Append stores the message, assigning the next per-conversation Seq.
func (s *MemoryStore) Append(ctx context.Context, m Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ClientMsgID != "" {
		if existing, ok := s.byKey[m.ConversationID][m.ClientMsgID]; ok {
			return existing, nil
		}
	}

	m.Seq = int64(len(s.byConv[m.ConversationID])) + 1
	s.byConv[m.ConversationID] = append(s.byConv[m.ConversationID], m)

	if m.ClientMsgID != "" {
		if s.byKey[m.ConversationID] == nil {
			s.byKey[m.ConversationID] = make(map[string]Message)
		}
		s.byKey[m.ConversationID][m.ClientMsgID] = m
	}
	return m, nil
}

// History returns up to limit messages, newest first.
func (s *MemoryStore) History(ctx context.Context, conversationID string, beforeSeq int64, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.byConv[conversationID]
	out := make([]Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeSeq > 0 && all[i].Seq >= beforeSeq {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}
