package credential

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	cfg := testConfig()
	mgr, err := NewHS256Manager(cfg)
	if err != nil {
		t.Fatalf("NewHS256Manager: %v", err)
	}

	store := NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(cfg, log, store, mgr), store
}

func TestMintPair_AccessVerifiesToSameSubject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pair, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	claims, err := svc.VerifyAccess(pair.AccessToken, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.UserID != "u-1" {
		t.Fatalf("subject mismatch: got %q", claims.UserID)
	}

	// Strictly after expiry the same token is invalid.
	after := pair.AccessExp.Add(svc.cfg.ClockSkew + time.Second)
	if _, err := svc.VerifyAccess(pair.AccessToken, after); err != ErrInvalidCredential {
		t.Fatalf("want ErrInvalidCredential after expiry, got %v", err)
	}
}

func TestVerifyRefresh_ChecksStore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pair, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	if _, err := svc.VerifyRefresh(ctx, pair.RefreshToken, now); err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}

	if err := svc.Revoke(ctx, now, "u-1", pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.VerifyRefresh(ctx, pair.RefreshToken, now); !errors.Is(err, ErrRecordRevoked) {
		t.Fatalf("want ErrRecordRevoked, got %v", err)
	}
}

func TestRotate_OldRefreshIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p1, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	p2, claims, err := svc.Rotate(ctx, now.Add(time.Minute), p1.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if claims.UserID != "u-1" {
		t.Fatalf("rotated subject mismatch: got %q", claims.UserID)
	}
	if p2.AccessToken == p1.AccessToken || p2.RefreshToken == p1.RefreshToken {
		t.Fatalf("rotation must mint both tokens fresh")
	}

	// The rotated-out refresh credential is dead.
	if _, err := svc.VerifyRefresh(ctx, p1.RefreshToken, now.Add(2*time.Minute)); !errors.Is(err, ErrRecordRevoked) {
		t.Fatalf("want ErrRecordRevoked for used refresh, got %v", err)
	}

	// The replacement works.
	if _, err := svc.VerifyRefresh(ctx, p2.RefreshToken, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("VerifyRefresh new: %v", err)
	}
}

func TestRotate_FailedAttemptRevokesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pair, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	// Tampered token: rotation must fail before touching the store.
	bad := pair.RefreshToken[:len(pair.RefreshToken)-2] + "xx"
	if _, _, err := svc.Rotate(ctx, now, bad); err != ErrInvalidCredential {
		t.Fatalf("want ErrInvalidCredential, got %v", err)
	}

	// The legitimate credential is untouched.
	if _, err := svc.VerifyRefresh(ctx, pair.RefreshToken, now); err != nil {
		t.Fatalf("credential harmed by failed rotation: %v", err)
	}
}

func TestRotate_ReuseRevokesEverything(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p1, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}
	p2, _, err := svc.Rotate(ctx, now, p1.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	// Presenting the rotated-out token again is reuse.
	if _, _, err := svc.Rotate(ctx, now.Add(time.Second), p1.RefreshToken); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("want ErrReuseDetected, got %v", err)
	}

	// The incident revoked the replacement too.
	if _, err := svc.VerifyRefresh(ctx, p2.RefreshToken, now.Add(2*time.Second)); !errors.Is(err, ErrRecordRevoked) {
		t.Fatalf("want ErrRecordRevoked after reuse incident, got %v", err)
	}
}

func TestRotate_ConcurrentUsesObserveOneState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pair, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Rotate(ctx, now.Add(time.Second), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if !IsInvalid(err) {
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}
	if ok > 1 {
		t.Fatalf("refresh credential rotated %d times, want at most 1", ok)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pair, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	if err := svc.Revoke(ctx, now, "u-1", pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, now, "u-1", pair.RefreshToken); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, now, "u-1", "never-issued"); err != nil {
		t.Fatalf("Revoke of unknown credential: %v", err)
	}
}

func TestSweepExpired_DeletesOnlyExpired(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old, err := svc.MintPair(ctx, now.Add(-8*24*time.Hour), "u-1")
	if err != nil {
		t.Fatalf("MintPair old: %v", err)
	}
	fresh, err := svc.MintPair(ctx, now, "u-1")
	if err != nil {
		t.Fatalf("MintPair fresh: %v", err)
	}
	_ = old

	n, err := svc.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 deleted record, got %d", n)
	}

	if _, err := svc.VerifyRefresh(ctx, fresh.RefreshToken, now); err != nil {
		t.Fatalf("fresh credential swept: %v", err)
	}

	// Sweeping again is a no-op.
	n, err = store.DeleteExpired(ctx, now)
	if err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}

func TestSweeper_RunsAndStops(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now().UTC()
	if _, err := svc.MintPair(ctx, now.Add(-8*24*time.Hour), "u-1"); err != nil {
		t.Fatalf("MintPair: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewSweeper(svc, 10*time.Millisecond, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := svc.store.FindByDigest(ctx, digestOfOnlyRecord(svc)); errors.Is(err, ErrRecordNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not delete expired record")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop on cancellation")
	}
}

// digestOfOnlyRecord returns the digest of the single record the test minted,
// or a sentinel that will never match once the sweep removed it.
func digestOfOnlyRecord(svc *Service) string {
	ms, ok := svc.store.(*MemoryStore)
	if !ok {
		return "?"
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for d := range ms.byDigest {
		return d
	}
	return "swept"
}
