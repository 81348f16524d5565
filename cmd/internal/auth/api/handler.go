// Package authapi exposes the credential lifecycle over HTTP: login mints a
// pair, refresh rotates it, logout revokes it. Tokens travel in HttpOnly
// cookies managed by the gate; response bodies carry only lifetimes.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"souq/cmd/internal/auth/credential"
	"souq/cmd/internal/auth/gate"
	"souq/cmd/internal/users"
	"souq/cmd/security/password"
)

// Handler wires the auth HTTP endpoints to the credential service.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	gateCfg gate.Config

	users users.Store
	creds *credential.Service
	gate  *gate.Gate

	ipLimiter   *failureLimiter
	userLimiter *failureLimiter

	dummyHash string
}

// NewHandler constructs the auth Handler.
func NewHandler(log *slog.Logger, cfg Config, gateCfg gate.Config, userStore users.Store, creds *credential.Service, g *gate.Gate) *Handler {
	h := &Handler{
		log:         log,
		cfg:         cfg,
		gateCfg:     gateCfg,
		users:       userStore,
		creds:       creds,
		gate:        g,
		ipLimiter:   newFailureLimiter(cfg.LoginIPMax, cfg.LoginIPWindow),
		userLimiter: newFailureLimiter(cfg.LoginUserMax, cfg.LoginUserWindow),
	}

	// Dummy hash for timing-resistant login checks against unknown emails.
	if hash, err := password.Hash("dummy-password-for-timing-only", password.DefaultParams()); err == nil {
		h.dummyHash = hash
	}

	return h
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/logout_all", h.handleLogoutAll)
	mux.Handle("GET /me", h.gate.Require(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}

	if h.ipLimiter.Blocked(ipKey, now) || h.userLimiter.Blocked(email, now) {
		h.log.Info("auth.login.rate_limited", "ip", ipKey, "email", email)
		writeRateLimited(w, h.cfg.LoginUserWindow)
		return
	}

	u, err := h.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return
		}
		// Timing resistance: perform a dummy verify when the user is missing.
		if h.dummyHash != "" {
			_, _ = password.Verify(h.dummyHash, req.Password)
		}
		h.recordLoginFailure(ipKey, email, now, "not_found")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	okPw, err := password.Verify(u.PasswordHash, req.Password)
	if err != nil || !okPw {
		h.recordLoginFailure(ipKey, email, now, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if u.Banned {
		h.recordLoginFailure(ipKey, email, now, "banned")
		writeError(w, http.StatusForbidden, "account_suspended", "account suspended")
		return
	}

	pair, err := h.creds.MintPair(ctx, now, u.ID)
	if err != nil {
		h.log.Error("auth.login.mint.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.gate.SetPair(w, pair)
	h.log.Info("auth.login.ok", "user_id", u.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		User: toUserResponse(u),
		Session: sessionResponse{
			AccessExpiresAt:  pair.AccessExp,
			RefreshExpiresAt: pair.RefreshExp,
		},
	})
}

// handleRefresh is the explicit rotation endpoint for clients that prefer not
// to rely on the gate's transparent rotation.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshTok, ok := h.refreshFromCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_refresh_token", "refresh credential missing")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	pair, claims, err := h.creds.Rotate(ctx, now, refreshTok)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrReuseDetected):
			h.log.Warn("auth.refresh.reuse_detected")
			h.gate.ClearPair(w)
			writeError(w, http.StatusUnauthorized, "refresh_reuse_detected", "credential reuse detected")
		case credential.IsInvalid(err):
			h.gate.ClearPair(w)
			writeError(w, http.StatusUnauthorized, "invalid_refresh", "refresh credential rejected")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		}
		return
	}

	h.gate.SetPair(w, pair)
	h.log.Info("auth.refresh.ok", "user_id", claims.UserID)
	writeJSON(w, http.StatusOK, refreshResponse{
		Session: sessionResponse{
			AccessExpiresAt:  pair.AccessExp,
			RefreshExpiresAt: pair.RefreshExp,
		},
	})
}

// handleLogout revokes the presented refresh credential and clears both
// cookies. Resolution here is deliberately rotation-free: going through the
// gate with an expired access cookie would consume the refresh credential
// and mint a live replacement, and revoking the original afterwards would
// leave that replacement valid in the store.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	userID, ok := h.subjectWithoutRotation(r, now)
	if !ok {
		// Already unauthenticated; clearing cookies is all logout means.
		h.gate.ClearPair(w)
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	if refreshTok, ok := h.refreshFromCookie(r); ok {
		if err := h.creds.Revoke(r.Context(), now, userID, refreshTok); err != nil {
			h.log.Error("auth.logout.revoke.fail", "err", err)
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return
		}
	}

	h.gate.ClearPair(w)
	h.log.Info("auth.logout.ok", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	subj, err := h.gate.Resolve(w, r)
	if err != nil {
		h.respondAuthFailure(w, err)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := h.creds.RevokeAll(ctx, now, subj.UserID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	}

	h.gate.ClearPair(w)
	h.log.Info("auth.logout_all.ok", "user_id", subj.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	subj, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	u, err := h.users.FindByID(r.Context(), subj.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) respondAuthFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, gate.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	h.log.Error("auth.resolve.fail", "err", err)
	writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
}

// subjectWithoutRotation identifies the caller from either cookie with no
// store writes: a valid access token, or failing that the refresh token's
// own signed claims. Good enough to authorize revoking that same refresh
// credential; never a substitute for gate.Resolve on protected routes.
func (h *Handler) subjectWithoutRotation(r *http.Request, now time.Time) (string, bool) {
	if c, err := r.Cookie(h.gateCfg.AccessCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		if claims, verr := h.creds.VerifyAccess(c.Value, now); verr == nil {
			return claims.UserID, true
		}
	}
	if refreshTok, ok := h.refreshFromCookie(r); ok {
		if claims, err := h.creds.InspectRefresh(refreshTok, now); err == nil {
			return claims.UserID, true
		}
	}
	return "", false
}

func (h *Handler) refreshFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.gateCfg.RefreshCookieName)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return "", false
	}
	return c.Value, true
}

func (h *Handler) recordLoginFailure(ipKey, email string, now time.Time, reason string) {
	h.ipLimiter.RecordFailure(ipKey, now)
	h.userLimiter.RecordFailure(email, now)
	h.log.Info("auth.login.failed", "reason", reason, "email", email)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
