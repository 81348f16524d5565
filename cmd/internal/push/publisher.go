package push

import (
	"log/slog"
	"time"
)

// MessageView is the client-facing shape of a chat message pushed to
// subscribers. It mirrors what the pull-based history API returns, so the
// two paths converge on the same representation.
type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Publisher is the broadcast entry point, invoked after a message has been
// durably stored. No retry, no queue: push is a latency optimization, the
// history API is the source of truth. Publishing to a conversation with zero
// subscribers is a cheap no-op.
type Publisher struct {
	reg *Registry
	log *slog.Logger
}

// NewPublisher constructs a Publisher over the registry.
func NewPublisher(reg *Registry, log *slog.Logger) *Publisher {
	return &Publisher{reg: reg, log: log}
}

// Publish fans the message out to every live subscriber of its conversation.
// Returns the number of connections the event was handed to (best-effort).
func (p *Publisher) Publish(conversationID string, view MessageView) int {
	env := NewEnvelope(EventMessage, conversationID, MarshalData(view), time.Now().UTC())
	n := p.reg.Broadcast(conversationID, env)
	p.log.Debug("push.publish", "conversation_id", conversationID, "message_id", view.ID, "delivered", n)
	return n
}
