package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"souq/cmd/internal/push"
	"souq/cmd/internal/users"
)

// Publisher is the push-side fanout invoked after a durable append.
type Publisher interface {
	Publish(conversationID string, view push.MessageView) int
}

// Service owns the chat write and read paths. The ordering contract is
// store-first: a message is pushed to live subscribers only after it is
// durable, so the history API never lags behind what a client saw pushed.
type Service struct {
	store   MessageStore
	members push.MembershipStore
	users   users.Store
	pub     Publisher
	log     *slog.Logger
}

// NewService constructs the chat service.
func NewService(store MessageStore, members push.MembershipStore, userStore users.Store, pub Publisher, log *slog.Logger) *Service {
	return &Service{store: store, members: members, users: userStore, pub: pub, log: log}
}

// Send validates, stores, and then fans out one message.
//
// clientMsgID is the caller's idempotency key: resending with the same key
// returns the originally stored message and does not publish again.
func (s *Service) Send(ctx context.Context, senderID, conversationID, clientMsgID, body string) (Message, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return Message{}, err
	}
	clientMsgID = strings.TrimSpace(clientMsgID)
	if len(clientMsgID) > maxClientMsgIDLen {
		clientMsgID = clientMsgID[:maxClientMsgIDLen]
	}

	if err := s.checkSender(ctx, senderID, conversationID); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ClientMsgID:    clientMsgID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	if stored.ID != msg.ID {
		// Idempotent replay: the original was already stored and published.
		s.log.Info("chat.send.replay", "conversation_id", conversationID, "client_msg_id", clientMsgID)
		return stored, nil
	}

	delivered := s.pub.Publish(conversationID, push.MessageView{
		ID:             stored.ID,
		ConversationID: stored.ConversationID,
		SenderID:       stored.SenderID,
		Body:           stored.Body,
		CreatedAt:      stored.CreatedAt,
	})
	s.log.Info("chat.send.ok",
		"conversation_id", conversationID,
		"message_id", stored.ID,
		"seq", stored.Seq,
		"delivered", delivered,
	)
	return stored, nil
}

// History returns a page of the conversation for a member, newest first.
// Muted users can read; banned users cannot.
func (s *Service) History(ctx context.Context, userID, conversationID string, beforeSeq int64, limit int) ([]Message, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.Banned {
		return nil, ErrBanned
	}

	member, err := s.members.IsMember(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, ErrNotMember
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.History(ctx, conversationID, beforeSeq, limit)
}

func (s *Service) checkSender(ctx context.Context, senderID, conversationID string) error {
	u, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u.Banned {
		return ErrBanned
	}
	if u.Muted {
		return ErrMuted
	}

	member, err := s.members.IsMember(ctx, senderID, conversationID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotMember
	}
	return nil
}
