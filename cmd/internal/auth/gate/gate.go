// Package gate authenticates requests against the credential service,
// transparently rotating the pair when the access token has expired and
// keeping the client's cookie pair synchronized.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"souq/cmd/internal/auth/credential"
)

// ErrUnauthorized is returned when neither credential resolves a subject.
// It is terminal for the request: the caller responds 401 and both cookie
// slots are already cleared.
var ErrUnauthorized = errors.New("unauthorized")

// Subject is the authenticated identity resolved for one request.
type Subject struct {
	UserID string

	// Rotated is true when this request consumed the refresh credential and
	// fresh cookies were written to the response.
	Rotated bool
}

type ctxKey struct{}

// FromContext returns the Subject stored by Require, if any.
func FromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(ctxKey{}).(Subject)
	return s, ok
}

// WithSubject returns a context carrying s, as Require would install it.
// Intended for handler tests and internal dispatch.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Gate is the per-request authentication boundary.
type Gate struct {
	cfg   Config
	creds *credential.Service
	log   *slog.Logger
}

// New constructs a Gate.
func New(cfg Config, creds *credential.Service, log *slog.Logger) *Gate {
	return &Gate{cfg: cfg, creds: creds, log: log}
}

// Resolve authenticates the request from its cookie pair.
//
// Order matters:
//  1. A valid access token resolves the subject with no store I/O and no
//     rotation. If a refresh token rides along, its subject must match —
//     the refresh path is never allowed to silently switch identity.
//  2. Otherwise a present refresh token is rotated; on success both fresh
//     values are written back to the response before the handler runs.
//  3. Otherwise the request is unauthenticated: both cookie slots are
//     cleared and ErrUnauthorized is returned.
//
// Non-credential failures (store unreachable during rotation) are returned
// as-is so callers can answer 5xx instead of silently logging the user out.
func (g *Gate) Resolve(w http.ResponseWriter, r *http.Request) (Subject, error) {
	now := time.Now().UTC()
	access, haveAccess := readCookie(r, g.cfg.AccessCookieName)
	refresh, haveRefresh := readCookie(r, g.cfg.RefreshCookieName)

	if haveAccess {
		claims, err := g.creds.VerifyAccess(access, now)
		if err == nil {
			if haveRefresh {
				rc, rerr := g.creds.InspectRefresh(refresh, now)
				if rerr == nil && rc.UserID != claims.UserID {
					g.log.Warn("gate.subject_mismatch", "access_user", claims.UserID, "refresh_user", rc.UserID)
					g.clearCookies(w)
					return Subject{}, ErrUnauthorized
				}
			}
			return Subject{UserID: claims.UserID}, nil
		}
	}

	if haveRefresh {
		pair, claims, err := g.creds.Rotate(r.Context(), now, refresh)
		if err == nil {
			g.setCookies(w, pair)
			g.log.Info("gate.rotated", "user_id", claims.UserID)
			return Subject{UserID: claims.UserID, Rotated: true}, nil
		}
		if !credential.IsInvalid(err) {
			return Subject{}, err
		}
		g.log.Info("gate.rotate.denied", "reason", err.Error())
	}

	g.clearCookies(w)
	return Subject{}, ErrUnauthorized
}

// Require wraps a handler with authentication. Unauthenticated requests get
// 401 with cleared cookies; store failures get 503.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subj, err := g.Resolve(w, r)
		if errors.Is(err, ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err != nil {
			g.log.Error("gate.resolve.fail", "err", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subj)))
	})
}

func readCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
