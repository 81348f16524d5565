package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"souq/cmd/internal/auth/gate"
	"souq/cmd/internal/users"
)

// SSEGateway is the primary push entrypoint: a long-lived text/event-stream
// response carrying one JSON envelope per event.
//
// It must be mounted behind gate.Require; admission additionally checks the
// user's moderation flags and conversation membership before the connection
// joins any set.
type SSEGateway struct {
	log     *slog.Logger
	cfg     Config
	reg     *Registry
	members MembershipStore
	users   users.Store
}

// NewSSEGateway constructs the SSE gateway.
func NewSSEGateway(log *slog.Logger, cfg Config, reg *Registry, members MembershipStore, userStore users.Store) *SSEGateway {
	return &SSEGateway{log: log, cfg: cfg, reg: reg, members: members, users: userStore}
}

// ServeHTTP admits the connection and runs the write loop until the client
// disconnects, the connection is pruned, or a write fails. Cleanup is a
// single idempotent Unsubscribe reachable from every exit path.
func (g *SSEGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subj, ok := gate.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.log.Error("sse.no_flusher")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	conversationID := r.URL.Query().Get("conversation")
	conversationIDs, status, err := g.authorize(r, subj.UserID, conversationID)
	if err != nil {
		if status == http.StatusServiceUnavailable {
			g.log.Error("sse.authorize.fail", "err", err)
		} else {
			g.log.Info("sse.reject", "user_id", subj.UserID, "conversation_id", conversationID, "reason", err.Error())
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := NewConnection(subj.UserID, g.cfg.SendQueueSize)
	if conversationID != "" {
		g.reg.Subscribe(conn, conversationID)
	} else {
		g.reg.SubscribeAll(conn, conversationIDs)
	}
	defer g.reg.Unsubscribe(conn)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case env := <-conn.Send:
			if err := writeSSE(w, env); err != nil {
				g.log.Info("sse.write.fail", "connection_id", conn.ID, "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

// authorize resolves which conversations the connection may join.
// An empty conversationID selects the all-conversations mode.
func (g *SSEGateway) authorize(r *http.Request, userID, conversationID string) ([]string, int, error) {
	return authorizeSubscription(r.Context(), g.users, g.members, userID, conversationID)
}

// authorizeSubscription runs the shared admission checks for both push
// transports: the user must exist and not be banned, and a targeted
// subscription requires membership in that conversation. For the
// all-conversations mode it returns the conversation set to join.
func authorizeSubscription(ctx context.Context, userStore users.Store, members MembershipStore, userID, conversationID string) ([]string, int, error) {
	u, err := userStore.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, http.StatusUnauthorized, errors.New("unknown user")
		}
		return nil, http.StatusServiceUnavailable, err
	}
	if u.Banned {
		return nil, http.StatusForbidden, errors.New("account suspended")
	}

	if conversationID != "" {
		member, err := members.IsMember(ctx, userID, conversationID)
		if err != nil {
			return nil, http.StatusServiceUnavailable, err
		}
		if !member {
			return nil, http.StatusForbidden, errors.New("not a conversation member")
		}
		return nil, 0, nil
	}

	ids, err := members.ConversationIDs(ctx, userID)
	if err != nil {
		return nil, http.StatusServiceUnavailable, err
	}
	return ids, 0, nil
}

// writeSSE frames one envelope per the event-stream convention.
func writeSSE(w http.ResponseWriter, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
