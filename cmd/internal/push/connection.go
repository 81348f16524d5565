package push

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection represents one live push transport (SSE response or websocket).
//
// Design notes:
// - Send is intentionally NOT closed by the server to keep broadcast safe
//   under concurrency; writers select on Done instead.
// - Close is idempotent: transport teardown, heartbeat failure, and client
//   disconnect may all race to call it.
// - A Connection is owned by the Registry for its lifetime and never persisted.
type Connection struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	Send        chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection constructs a Connection with a bounded send queue.
func NewConnection(userID string, sendQueueSize int) *Connection {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		Send:        make(chan Envelope, sendQueueSize),
		done:        make(chan struct{}),
	}
}

// Done returns a channel that is closed when the connection is shutting down.
func (c *Connection) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals shutdown (idempotent). It does NOT close Send.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
