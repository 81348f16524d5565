package app

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.ReadinessRequireDB && !a.dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if a.dbEnabled && a.dbPool != nil {
			if err := PingDB(r.Context(), a.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))

	a.auth.Register(mux)
	a.chatAPI.Register(mux, a.gate.Require)

	mux.Handle("GET /events", a.gate.Require(a.sse))
	mux.Handle("GET /ws", a.gate.Require(a.ws))

	mux.Handle("POST /admin/credentials/sweep", a.requireAdmin(http.HandlerFunc(a.handleSweep)))
	mux.Handle("GET /admin/push/subscriptions", a.requireAdmin(http.HandlerFunc(a.handleSubscriptions)))
}

// requireAdmin guards operational endpoints with a static bearer token.
// With no token configured the endpoints are disabled outright.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.AdminToken == "" {
			http.NotFound(w, r)
			return
		}

		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		presented, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(a.cfg.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleSweep triggers an immediate expired-credential sweep, independent of
// the background interval.
func (a *App) handleSweep(w http.ResponseWriter, r *http.Request) {
	deleted, err := a.sweeper.SweepNow(r.Context())
	if err != nil {
		a.log.Error("admin.sweep.fail", "err", err)
		http.Error(w, "sweep failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}

// handleSubscriptions reports live push connections per conversation.
func (a *App) handleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversations": a.registry.SubscriptionCounts(),
	})
}
