package push

import (
	"encoding/json"
	"time"
)

// EventType enumerates the envelope kinds carried on a push connection.
type EventType string

const (
	// EventConnected is emitted to a connection once, on admission.
	EventConnected EventType = "connected"
	// EventMessage carries a chat message fanned out to subscribers.
	EventMessage EventType = "message"
	// EventHeartbeat is the periodic liveness no-op.
	EventHeartbeat EventType = "heartbeat"
	// EventError carries a terminal, connection-local error description.
	EventError EventType = "error"
)

// Envelope is the wire framing for every push event: one JSON object per
// event, newline-delimited per the event-stream convention.
type Envelope struct {
	Type      EventType       `json:"type"`
	ChannelID string          `json:"channelId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope constructs an envelope stamped with ts.
func NewEnvelope(typ EventType, channelID string, data json.RawMessage, ts time.Time) Envelope {
	return Envelope{
		Type:      typ,
		ChannelID: channelID,
		Data:      data,
		Timestamp: ts,
	}
}

func heartbeatEnvelope(ts time.Time) Envelope {
	return Envelope{Type: EventHeartbeat, Timestamp: ts}
}

func errorEnvelope(msg string, ts time.Time) Envelope {
	return Envelope{Type: EventError, Message: msg, Timestamp: ts}
}
