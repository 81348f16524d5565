// Package app wires the Souq notification core: config, logging, the
// credential lifecycle, the push registry and its transports, and the chat
// HTTP surface.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	authapi "souq/cmd/internal/auth/api"
	"souq/cmd/internal/auth/credential"
	"souq/cmd/internal/auth/gate"
	"souq/cmd/internal/chat"
	"souq/cmd/internal/push"
	"souq/cmd/internal/users"
)

// App is the Souq server runtime: it owns the HTTP server wiring and the
// lifecycles of the push registry and the credential sweeper.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics  *prometheus.Registry
	registry *push.Registry
	sweeper  *credential.Sweeper

	auth    *authapi.Handler
	gate    *gate.Gate
	sse     *push.SSEGateway
	ws      *push.WSGateway
	chatAPI *chat.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	pool, dbEnabled, err := openDB(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// Store selection: Postgres when configured, in-memory otherwise. The
	// in-memory mode exists for local development and tests only.
	var (
		userStore   users.Store
		credStore   credential.Store
		memberStore push.MembershipStore
		msgStore    chat.MessageStore
	)
	if dbEnabled {
		userStore = users.NewPostgresStore(pool)
		credStore = credential.NewPostgresStore(pool)
		members, err := push.NewPostgresMembershipStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		memberStore = members
		messages, err := chat.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		msgStore = messages
	} else {
		log.Info("db.disabled.inmemory_stores")
		userStore = users.NewMemoryStore()
		credStore = credential.NewMemoryStore()
		memberStore = push.NewMemoryMembershipStore()
		msgStore = chat.NewMemoryStore()
	}

	credCfg, err := credential.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tokens, err := credential.NewHS256Manager(credCfg)
	if err != nil {
		return nil, err
	}
	creds := credential.NewService(credCfg, log, credStore, tokens)
	sweeper := credential.NewSweeper(creds, credCfg.SweepInterval, log)

	gateCfg := gate.LoadConfigFromEnv()
	g := gate.New(gateCfg, creds, log)

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pushCfg := push.LoadConfigFromEnv()
	registry := push.NewRegistry(log, pushCfg.HeartbeatInterval, push.NewMetrics(metrics))
	publisher := push.NewPublisher(registry, log)

	chatSvc := chat.NewService(msgStore, memberStore, userStore, publisher, log)

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		metrics:   metrics,
		registry:  registry,
		sweeper:   sweeper,
		auth:      authapi.NewHandler(log, authapi.LoadConfigFromEnv(), gateCfg, userStore, creds, g),
		gate:      g,
		sse:       push.NewSSEGateway(log, pushCfg, registry, memberStore, userStore),
		ws:        push.NewWSGateway(log, pushCfg, registry, memberStore, userStore),
		chatAPI:   chat.NewHandler(chatSvc, log),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	a.registerHTTP(mux)

	handler := WithRequestLogging(
		WithSecurityHeaders(WithCORS(mux, a.cfg, a.log)),
		a.log,
	)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go a.sweeper.Run(sweepCtx)

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", base,
		"ws_url", wsBaseURL(base),
		"db_enabled", a.dbEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	// Drop live push connections first so the server isn't kept open by
	// long-lived streams, then shut the listener down.
	a.registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// runtimeBaseURL derives a human-usable URL from the bind address,
// substituting loopback for wildcard binds.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

// wsBaseURL maps an http(s) base URL onto its websocket scheme.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// openDB connects and migrates when a database is configured.
func openDB(ctx context.Context, cfg Config, log Logger) (*pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		return nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, false, err
	}
	log.Info("db.enabled.postgres_stores")

	if cfg.MigrateOnStart {
		if err := Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, false, err
		}
	}

	return pool, true, nil
}
