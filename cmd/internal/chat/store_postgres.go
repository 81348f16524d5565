package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists messages in souq.messages.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a MessageStore backed by PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Append stores the message inside a transaction. A per-conversation advisory
// lock serializes Seq assignment; the (conversation_id, client_msg_id) unique
// constraint backs the idempotency check.
func (s *PostgresStore) Append(ctx context.Context, m Message) (Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.ConversationID); err != nil {
		return Message{}, fmt.Errorf("lock conversation: %w", err)
	}

	if m.ClientMsgID != "" {
		existing, err := s.findByClientMsgID(ctx, tx, m.ConversationID, m.ClientMsgID)
		if err == nil {
			if cerr := tx.Commit(ctx); cerr != nil {
				return Message{}, fmt.Errorf("commit append tx: %w", cerr)
			}
			return existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Message{}, err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO souq.messages (id, conversation_id, sender_id, client_msg_id, seq, body, created_at)
		VALUES (
			$1, $2, $3, NULLIF($4, ''),
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM souq.messages WHERE conversation_id = $2),
			$5, $6
		)
		RETURNING seq
	`, m.ID, m.ConversationID, m.SenderID, m.ClientMsgID, m.Body, m.CreatedAt).Scan(&m.Seq)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit append tx: %w", err)
	}
	return m, nil
}

// History returns up to limit messages, newest first.
func (s *PostgresStore) History(ctx context.Context, conversationID string, beforeSeq int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, COALESCE(client_msg_id, ''), seq, body, created_at
		FROM souq.messages
		WHERE conversation_id = $1
		  AND ($2::bigint <= 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3
	`, conversationID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ClientMsgID, &m.Seq, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findByClientMsgID(ctx context.Context, tx pgx.Tx, conversationID, clientMsgID string) (Message, error) {
	var m Message
	err := tx.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, COALESCE(client_msg_id, ''), seq, body, created_at
		FROM souq.messages
		WHERE conversation_id = $1 AND client_msg_id = $2
	`, conversationID, clientMsgID).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ClientMsgID, &m.Seq, &m.Body, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}
