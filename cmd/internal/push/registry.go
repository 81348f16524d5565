package push

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Registry is the in-memory mapping from conversation id to the set of live
// push connections, plus a per-user "all conversations" slot.
//
// It is an injectable instance with an explicit lifecycle (constructed at
// startup, Close at shutdown), not ambient module state. All maps are guarded
// by one mutex held for the span of a lookup+mutate only — never across a
// network write. Fanout goes through bounded per-connection queues, so a
// slow or dead client cannot stall delivery to other subscribers.
//
// The registry holds no durable state: a restart drops every connection and
// clients are expected to reconnect and re-subscribe.
type Registry struct {
	log            *slog.Logger
	heartbeatEvery time.Duration
	metrics        *Metrics

	mu            sync.Mutex
	conversations map[string]map[string]*Connection // conversation id -> connection id -> conn
	userSlots     map[string]*Connection            // user id -> all-conversations connection
	memberships   map[string]map[string]struct{}    // connection id -> conversation ids
	admitted      map[string]*Connection            // connection id -> conn
	closed        bool
}

// NewRegistry constructs a Registry. A non-positive heartbeat interval falls
// back to the package default.
func NewRegistry(log *slog.Logger, heartbeatEvery time.Duration, metrics *Metrics) *Registry {
	if heartbeatEvery <= 0 {
		heartbeatEvery = defaultHeartbeatInterval
	}
	return &Registry{
		log:            log,
		heartbeatEvery: heartbeatEvery,
		metrics:        metrics,
		conversations:  make(map[string]map[string]*Connection),
		userSlots:      make(map[string]*Connection),
		memberships:    make(map[string]map[string]struct{}),
		admitted:       make(map[string]*Connection),
	}
}

// Subscribe adds conn to one conversation's set, creating the set if absent,
// and emits a connected event to the new connection only.
//
// Authentication and conversation membership must already be checked by the
// caller; the registry does no authorization of its own.
func (r *Registry) Subscribe(conn *Connection, conversationID string) {
	if conn == nil || conversationID == "" {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.admitLocked(conn)
	// Connected is enqueued before the lock is released so a racing broadcast
	// cannot slot a message event ahead of it.
	r.enqueue(conn, NewEnvelope(EventConnected, conversationID, nil, time.Now().UTC()))
	r.joinLocked(conn, conversationID)
	r.mu.Unlock()

	r.log.Info("push.subscribe", "conversation_id", conversationID, "connection_id", conn.ID, "user_id", conn.UserID)
}

// SubscribeAll adds the same connection to every listed conversation's set and
// records it as the user's all-conversations slot. One underlying transport
// serves many sets. A previous slot holder for the user is closed first.
func (r *Registry) SubscribeAll(conn *Connection, conversationIDs []string) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return
	}

	prev := r.userSlots[conn.UserID]
	r.admitLocked(conn)
	// Connected first, then the joins, all under one lock span: no broadcast
	// can reach this connection before its connected event is queued.
	r.enqueue(conn, NewEnvelope(EventConnected, "", nil, time.Now().UTC()))
	r.userSlots[conn.UserID] = conn
	for _, id := range conversationIDs {
		if id != "" {
			r.joinLocked(conn, id)
		}
	}
	r.mu.Unlock()

	// The replaced connection is torn down outside the lock.
	if prev != nil && prev != conn {
		r.Unsubscribe(prev)
	}

	r.log.Info("push.subscribe_all", "connection_id", conn.ID, "user_id", conn.UserID, "conversations", len(conversationIDs))
}

// Unsubscribe removes the connection from every set it belongs to, deletes
// any set left empty, frees the user slot if held, and signals shutdown.
// Idempotent: it is expected to be called from every "closed" signal source.
func (r *Registry) Unsubscribe(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	_, known := r.admitted[conn.ID]
	if known {
		delete(r.admitted, conn.ID)
		for conversationID := range r.memberships[conn.ID] {
			r.leaveLocked(conn.ID, conversationID)
		}
		delete(r.memberships, conn.ID)
		if r.userSlots[conn.UserID] == conn {
			delete(r.userSlots, conn.UserID)
		}
	}
	r.mu.Unlock()

	// Signal shutdown after removal so broadcasters holding a stale pointer
	// observe Done before the transport goroutines tear down.
	conn.Close()

	if known {
		if r.metrics != nil {
			r.metrics.ActiveConnections.Dec()
		}
		r.log.Info("push.unsubscribe", "connection_id", conn.ID, "user_id", conn.UserID)
	}
}

// Broadcast fans env out to every connection in the conversation's set,
// preserving publish order per subscriber. Delivery failure is local: the
// failed connection is removed after the sweep, remaining deliveries proceed.
// Returns the number of queues the event was delivered into.
func (r *Registry) Broadcast(conversationID string, env Envelope) int {
	r.mu.Lock()
	set := r.conversations[conversationID]
	delivered := 0
	var failed []*Connection
	for _, conn := range set {
		if r.enqueue(conn, env) {
			delivered++
		} else {
			failed = append(failed, conn)
		}
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.BroadcastsTotal.Inc()
		r.metrics.DeliveredTotal.Add(float64(delivered))
		r.metrics.DroppedTotal.Add(float64(len(failed)))
	}

	for _, conn := range failed {
		r.log.Info("push.broadcast.drop", "conversation_id", conversationID, "connection_id", conn.ID)
		r.Unsubscribe(conn)
	}

	return delivered
}

// SubscriptionCounts returns the number of live connections per conversation.
// Read-only ops surface; not on the hot path.
func (r *Registry) SubscriptionCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.conversations))
	for id, set := range r.conversations {
		out[id] = len(set)
	}
	return out
}

// Close tears down every live connection. The registry refuses new
// subscriptions afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*Connection, 0, len(r.admitted))
	for _, c := range r.admitted {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.enqueue(c, errorEnvelope("server shutting down", time.Now().UTC()))
		r.Unsubscribe(c)
	}
	r.log.Info("push.registry.closed", "connections", len(conns))
}

// ---- internals (callers hold r.mu where noted) ----

// admitLocked registers the connection and starts its heartbeat on first admission.
func (r *Registry) admitLocked(conn *Connection) {
	if _, ok := r.admitted[conn.ID]; ok {
		return
	}
	r.admitted[conn.ID] = conn
	r.memberships[conn.ID] = make(map[string]struct{})
	if r.metrics != nil {
		r.metrics.ActiveConnections.Inc()
	}
	go r.heartbeat(conn)
}

func (r *Registry) joinLocked(conn *Connection, conversationID string) {
	set := r.conversations[conversationID]
	if set == nil {
		set = make(map[string]*Connection)
		r.conversations[conversationID] = set
	}
	set[conn.ID] = conn
	r.memberships[conn.ID][conversationID] = struct{}{}
	if r.metrics != nil {
		r.metrics.Subscriptions.Inc()
	}
}

// leaveLocked removes one membership and prunes the set the moment it is empty:
// no empty-set entries persist.
func (r *Registry) leaveLocked(connID, conversationID string) {
	set := r.conversations[conversationID]
	if set == nil {
		return
	}
	if _, ok := set[connID]; !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conversations, conversationID)
	}
	if r.metrics != nil {
		r.metrics.Subscriptions.Dec()
	}
}

// enqueue is non-blocking: a full queue or a closing connection reports
// failure rather than stalling the caller.
func (r *Registry) enqueue(conn *Connection, env Envelope) bool {
	select {
	case <-conn.Done():
		return false
	default:
	}

	select {
	case conn.Send <- env:
		return true
	default:
		return false
	}
}

// heartbeat sends a periodic no-op to detect and prune dead transports
// proactively, independent of broadcast traffic.
func (r *Registry) heartbeat(conn *Connection) {
	t := time.NewTicker(r.heartbeatEvery)
	defer t.Stop()

	for {
		select {
		case <-conn.Done():
			return
		case <-t.C:
			if !r.enqueue(conn, heartbeatEnvelope(time.Now().UTC())) {
				r.log.Info("push.heartbeat.fail", "connection_id", conn.ID)
				r.Unsubscribe(conn)
				return
			}
			if r.metrics != nil {
				r.metrics.HeartbeatsTotal.Inc()
			}
		}
	}
}

// MarshalData is a small helper for building message envelopes.
func MarshalData(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
