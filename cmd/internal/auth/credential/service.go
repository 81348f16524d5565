package credential

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"souq/cmd/security/token"
)

// Service implements the credential lifecycle for Souq.
//
// It mints paired access/refresh tokens, verifies them, rotates refresh
// credentials as a single-use exchange, revokes them, and sweeps expired
// records. It is the only component that touches signing keys and the
// credential store.
type Service struct {
	cfg    Config
	tokens TokenManager
	store  Store
	log    *slog.Logger
}

// Pair is the result of minting or rotating a credential pair.
type Pair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service with the provided configuration, store, and
// token manager.
func NewService(cfg Config, log *slog.Logger, store Store, tokens TokenManager) *Service {
	return &Service{cfg: cfg, log: log, store: store, tokens: tokens}
}

// MintPair creates a fresh access/refresh pair for userID and persists the
// refresh record. It fails (wrapping ErrIssuance) only on the store write.
func (s *Service) MintPair(ctx context.Context, now time.Time, userID string) (Pair, error) {
	pair, rec, err := s.mint(now, userID)
	if err != nil {
		return Pair{}, err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return Pair{}, fmt.Errorf("%w: %w", ErrIssuance, err)
	}

	return pair, nil
}

func (s *Service) mint(now time.Time, userID string) (Pair, Record, error) {
	access, accessExp, err := s.tokens.Issue(userID, KindAccess, now, s.cfg.AccessTTL)
	if err != nil {
		return Pair{}, Record{}, err
	}
	refresh, refreshExp, err := s.tokens.Issue(userID, KindRefresh, now, s.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, Record{}, err
	}

	rec := Record{
		ID:          ulid.Make().String(),
		UserID:      userID,
		TokenDigest: token.HashCredentialHex(refresh),
		IssuedAt:    now,
		ExpiresAt:   refreshExp,
	}

	pair := Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}
	return pair, rec, nil
}

// VerifyAccess validates an access token's signature and expiry only.
//
// This is the hot path: it performs no store I/O, so a revoked session stays
// usable for at most one access window. That window is an accepted policy
// trade-off; refresh and rotation are always store-checked.
func (s *Service) VerifyAccess(tok string, now time.Time) (Claims, error) {
	return s.tokens.Verify(tok, KindAccess, now)
}

// VerifyRefresh validates signature/expiry and checks the backing record for
// existence and revocation. The store is the single source of truth for
// revocation; no in-memory cache is consulted.
func (s *Service) VerifyRefresh(ctx context.Context, tok string, now time.Time) (Claims, error) {
	claims, err := s.tokens.Verify(tok, KindRefresh, now)
	if err != nil {
		return Claims{}, err
	}

	rec, err := s.store.FindByDigest(ctx, token.HashCredentialHex(tok))
	if err != nil {
		return Claims{}, err
	}

	if rec.UserID != claims.UserID {
		return Claims{}, ErrInvalidCredential
	}
	if rec.Revoked() {
		return Claims{}, ErrRecordRevoked
	}
	if !rec.ExpiresAt.After(now) {
		return Claims{}, ErrRecordExpired
	}

	return claims, nil
}

// Rotate exchanges a refresh credential for a wholly new pair.
//
// The old credential is verified before anything is invalidated: a failed
// rotation leaves it untouched. On success the old record is revoked exactly
// once and linked to its replacement, making every refresh credential
// single-use. Both tokens are always minted fresh so a leaked refresh token
// has a bounded one-use window.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshTok string) (Pair, Claims, error) {
	refreshTok = strings.TrimSpace(refreshTok)
	// Basic sanity bounds to avoid pathological inputs.
	if refreshTok == "" || len(refreshTok) > 4096 {
		return Pair{}, Claims{}, ErrInvalidCredential
	}

	claims, err := s.tokens.Verify(refreshTok, KindRefresh, now)
	if err != nil {
		return Pair{}, Claims{}, err
	}

	pair, rec, err := s.mint(now, claims.UserID)
	if err != nil {
		return Pair{}, Claims{}, err
	}

	old, err := s.store.Swap(ctx, now, token.HashCredentialHex(refreshTok), rec)
	if err != nil {
		if IsInvalid(err) {
			s.log.Info("credential.rotate.denied", "user_id", claims.UserID, "reason", err.Error())
		}
		return Pair{}, Claims{}, err
	}

	s.log.Info("credential.rotate.ok", "user_id", old.UserID, "old_id", old.ID, "new_id", rec.ID)
	return pair, claims, nil
}

// InspectRefresh validates a refresh token's signature and expiry without
// consulting the store. It exists for subject comparison against an already
// authenticated access token; it must never be used to grant access.
func (s *Service) InspectRefresh(tok string, now time.Time) (Claims, error) {
	return s.tokens.Verify(tok, KindRefresh, now)
}

// Revoke marks the record of the given refresh credential revoked.
// Idempotent: revoking an already-revoked or unknown credential succeeds.
func (s *Service) Revoke(ctx context.Context, now time.Time, userID, refreshTok string) error {
	return s.store.Revoke(ctx, now, userID, token.HashCredentialHex(refreshTok))
}

// RevokeAll revokes every credential of a user (logout everywhere).
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	return s.store.RevokeAllForUser(ctx, now, userID)
}

// SweepExpired hard-deletes records past their expiry. Errors are returned to
// the caller for logging; the background sweeper never lets them escape.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}
