package push

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"souq/cmd/internal/auth/gate"
	"souq/cmd/internal/users"
)

// WSGateway is the websocket push transport for native clients. It carries
// the same envelopes as the SSE transport, one JSON text frame per event.
//
// Inbound frames are accepted only to keep the read side draining; clients
// have no send channel here, the chat HTTP API is the write path. A client
// that floods frames is rate limited and disconnected.
type WSGateway struct {
	log     *slog.Logger
	cfg     Config
	reg     *Registry
	members MembershipStore
	users   users.Store

	originPatterns []string
}

// NewWSGateway constructs the websocket gateway.
func NewWSGateway(log *slog.Logger, cfg Config, reg *Registry, members MembershipStore, userStore users.Store) *WSGateway {
	return &WSGateway{
		log:            log,
		cfg:            cfg,
		reg:            reg,
		members:        members,
		users:          userStore,
		originPatterns: deriveOriginPatterns(cfg.AllowedOrigins),
	}
}

// ServeHTTP upgrades the request and pumps envelopes until either side goes
// away. Must be mounted behind gate.Require.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subj, ok := gate.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if g.cfg.OriginRequired && !g.originAllowed(r) {
		g.log.Info("ws.reject.origin", "origin", r.Header.Get("Origin"))
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conversationID := r.URL.Query().Get("conversation")
	conversationIDs, status, err := g.authorize(r, subj.UserID, conversationID)
	if err != nil {
		if status == http.StatusServiceUnavailable {
			g.log.Error("ws.authorize.fail", "err", err)
		} else {
			g.log.Info("ws.reject", "user_id", subj.UserID, "conversation_id", conversationID, "reason", err.Error())
		}
		http.Error(w, err.Error(), status)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Info("ws.accept.fail", "err", err)
		return
	}
	c.SetReadLimit(maxFrameBytes)

	conn := NewConnection(subj.UserID, g.cfg.SendQueueSize)
	if conversationID != "" {
		g.reg.Subscribe(conn, conversationID)
	} else {
		g.reg.SubscribeAll(conn, conversationIDs)
	}

	ctx, cancel := context.WithCancel(r.Context())
	var once sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		once.Do(func() {
			g.reg.Unsubscribe(conn)
			_ = c.Close(code, reason)
			cancel()
		})
	}
	defer shutdown(websocket.StatusNormalClosure, "bye")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.writeLoop(ctx, c, conn, shutdown)
	}()

	g.readLoop(ctx, c, conn, shutdown)
	wg.Wait()
}

// writeLoop is the single writer for the socket, preserving per-connection
// frame order.
func (g *WSGateway) writeLoop(ctx context.Context, c *websocket.Conn, conn *Connection, shutdown func(websocket.StatusCode, string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			shutdown(websocket.StatusGoingAway, "unsubscribed")
			return
		case env := <-conn.Send:
			if err := g.writeEnvelope(ctx, c, env); err != nil {
				g.log.Info("ws.write.fail", "connection_id", conn.ID, "err", err)
				shutdown(websocket.StatusGoingAway, "write failed")
				return
			}
		}
	}
}

func (g *WSGateway) writeEnvelope(ctx context.Context, c *websocket.Conn, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, g.cfg.WriteTimeout)
	defer cancel()
	return c.Write(wctx, websocket.MessageText, b)
}

// readLoop drains inbound frames so the peer's control frames are serviced.
// Payloads are discarded; frames only count against the rate limit.
func (g *WSGateway) readLoop(ctx context.Context, c *websocket.Conn, conn *Connection, shutdown func(websocket.StatusCode, string)) {
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)
	for {
		_, _, err := c.Read(ctx)
		if err != nil {
			if !isExpectedClose(err) {
				g.log.Info("ws.read.fail", "connection_id", conn.ID, "err", err)
			}
			shutdown(websocket.StatusNormalClosure, "read closed")
			return
		}
		if !rl.Allow(time.Now()) {
			g.log.Info("ws.rate_limited", "connection_id", conn.ID, "user_id", conn.UserID)
			shutdown(websocket.StatusPolicyViolation, "rate limit exceeded")
			return
		}
	}
}

func (g *WSGateway) authorize(r *http.Request, userID, conversationID string) ([]string, int, error) {
	return authorizeSubscription(r.Context(), g.users, g.members, userID, conversationID)
}

func (g *WSGateway) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	host := originHostOnly(origin)
	if host == "" {
		return false
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if originHostOnly(allowed) == host {
			return true
		}
	}
	return false
}

// originHostOnly strips scheme and port, leaving just the host for comparison.
func originHostOnly(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

// deriveOriginPatterns converts configured origins into the host patterns the
// websocket library matches against.
func deriveOriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if h := originHostOnly(o); h != "" {
			out = append(out, h, h+":*")
		}
	}
	return out
}

func isExpectedClose(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}
