package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (souq.users).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `
	id, email, password_hash, display_name,
	is_banned, is_muted, is_listing_banned, created_at
`

// FindByID loads a user row by id.
func (s *PostgresStore) FindByID(ctx context.Context, userID string) (Row, error) {
	return s.findOne(ctx, `WHERE id = $1`, userID)
}

// FindByEmail loads a user row by email (case-insensitive).
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Row, error) {
	return s.findOne(ctx, `WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM souq.users
		`+where, arg).Scan(
		&row.ID,
		&row.Email,
		&row.PasswordHash,
		&row.DisplayName,
		&row.Banned,
		&row.Muted,
		&row.ListingBanned,
		&row.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}
