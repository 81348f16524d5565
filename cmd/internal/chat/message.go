package chat

import (
	"strings"
	"time"
)

const (
	// maxBodyBytes bounds a single chat message.
	maxBodyBytes = 4096
	// maxClientMsgIDLen bounds the caller-supplied idempotency key.
	maxClientMsgIDLen = 64

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Message is one durable chat message. Seq is a per-conversation sequence
// assigned at append time; history paging is keyed on it.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ClientMsgID    string    `json:"clientMsgId,omitempty"`
	Seq            int64     `json:"seq"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
}

// normalizeBody trims and validates the message body.
func normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if len(body) > maxBodyBytes {
		return "", ErrBodyTooLong
	}
	return body, nil
}
