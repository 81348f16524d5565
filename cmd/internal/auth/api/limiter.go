package authapi

import (
	"sync"
	"time"
)

// failureLimiter throttles by counting recent failures per key (client IP or
// submitted email). Successes are never counted, so a legitimate user behind
// a shared IP is not punished by their own traffic.
//
// State is process-local: after a restart the window restarts empty, which is
// acceptable for a brute-force brake.
type failureLimiter struct {
	mu     sync.Mutex
	byKey  map[string][]time.Time
	max    int
	window time.Duration
}

func newFailureLimiter(max int, window time.Duration) *failureLimiter {
	return &failureLimiter{
		byKey:  make(map[string][]time.Time),
		max:    max,
		window: window,
	}
}

// Blocked reports whether key has accumulated too many recent failures.
func (l *failureLimiter) Blocked(key string, now time.Time) bool {
	if key == "" || l.max <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(key, now)) >= l.max
}

// RecordFailure notes one failed attempt for key.
func (l *failureLimiter) RecordFailure(key string, now time.Time) {
	if key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byKey[key] = append(l.pruneLocked(key, now), now)
}

func (l *failureLimiter) pruneLocked(key string, now time.Time) []time.Time {
	cut := now.Add(-l.window)
	dst := l.byKey[key][:0]
	for _, t := range l.byKey[key] {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	if len(dst) == 0 {
		delete(l.byKey, key)
		return nil
	}
	l.byKey[key] = dst
	return dst
}
