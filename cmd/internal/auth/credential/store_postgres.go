package credential

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (souq.credentials).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new credential record.
func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO souq.credentials (
			id, user_id, token_digest, issued_at, expires_at, revoked_at, replaced_by_id
		) VALUES ($1, $2, $3, $4, $5, NULL, NULL)
	`, rec.ID, rec.UserID, rec.TokenDigest, rec.IssuedAt, rec.ExpiresAt)
	return err
}

const credentialColumns = `
	id, user_id, token_digest, issued_at, expires_at, revoked_at, replaced_by_id
`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.TokenDigest,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&rec.ReplacedByID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// FindByDigest loads a credential record by token digest.
func (s *PostgresStore) FindByDigest(ctx context.Context, digest string) (Record, error) {
	return scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM souq.credentials
		WHERE token_digest = $1
	`, digest))
}

// Swap rotates oldDigest into newRec inside a single transaction.
//
// The old row is locked with SELECT ... FOR UPDATE so a concurrent rotation or
// revocation of the same refresh credential observes the same state this
// exchange commits against.
func (s *PostgresStore) Swap(ctx context.Context, now time.Time, oldDigest string, newRec Record) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanRecord(tx.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM souq.credentials
		WHERE token_digest = $1
		FOR UPDATE
	`, oldDigest))
	if err != nil {
		return Record{}, err
	}

	if old.UserID != newRec.UserID {
		// A digest matching a different subject is treated as no match at all.
		return Record{}, ErrRecordNotFound
	}

	// Reuse detection: a rotated credential presented again is a security
	// incident, not a routine failure. Revoke everything the user holds.
	if old.Revoked() && old.ReplacedByID != nil {
		if err := revokeAllTx(ctx, tx, now, old.UserID); err != nil {
			return Record{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Record{}, err
		}
		return Record{}, ErrReuseDetected
	}

	if old.Revoked() {
		return Record{}, ErrRecordRevoked
	}
	if !old.ExpiresAt.After(now) {
		return Record{}, ErrRecordExpired
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO souq.credentials (
			id, user_id, token_digest, issued_at, expires_at, revoked_at, replaced_by_id
		) VALUES ($1, $2, $3, $4, $5, NULL, NULL)
	`, newRec.ID, newRec.UserID, newRec.TokenDigest, newRec.IssuedAt, newRec.ExpiresAt)
	if err != nil {
		return Record{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE souq.credentials
		SET revoked_at = $2, replaced_by_id = $3
		WHERE id = $1
	`, old.ID, now, newRec.ID)
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return old, nil
}

// Revoke marks the matching record revoked (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, userID, digest string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE souq.credentials
		SET revoked_at = COALESCE(revoked_at, $3)
		WHERE user_id = $1 AND token_digest = $2
	`, userID, digest, now)
	return err
}

// RevokeAllForUser revokes all records for a user (idempotent).
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE souq.credentials
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE user_id = $1
	`, userID, now)
	return err
}

func revokeAllTx(ctx context.Context, tx pgx.Tx, now time.Time, userID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE souq.credentials
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE user_id = $1
	`, userID, now)
	return err
}

// DeleteExpired hard-deletes records past their expiry.
func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM souq.credentials
		WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
