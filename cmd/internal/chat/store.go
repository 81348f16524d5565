package chat

import "context"

// MessageStore is the durable boundary for chat messages.
type MessageStore interface {
	// Append stores the message, assigning its per-conversation Seq. When a
	// message with the same (conversation id, client msg id) already exists,
	// the stored message is returned unchanged: retries are idempotent and
	// never duplicate.
	Append(ctx context.Context, m Message) (Message, error)

	// History returns up to limit messages of the conversation, newest first.
	// beforeSeq > 0 restricts the page to messages with Seq < beforeSeq;
	// beforeSeq <= 0 starts from the latest.
	History(ctx context.Context, conversationID string, beforeSeq int64, limit int) ([]Message, error)
}
