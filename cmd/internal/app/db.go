package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDBPool builds the pgx pool backing the souq stores and verifies that a
// connection can actually be acquired. It does not touch the schema; the
// embedded goose migrations run separately via Migrate when SOUQ_DB_MIGRATE
// is enabled.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	// Long-lived connections are fine for the chat/credential workload, but
	// recycling them hourly keeps the pool responsive to server-side changes.
	pcfg.MaxConnLifetime = time.Hour
	pcfg.ConnConfig.RuntimeParams["application_name"] = "souq"

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB reports whether a connection can be acquired within timeout. Used
// at startup and by the readiness endpoint.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
