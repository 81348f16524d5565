package credential

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs the periodic expired-record sweep as an owned, cancellable
// task rather than a fire-and-forget timer.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper constructs a Sweeper. A non-positive interval falls back to the
// service's configured cadence.
func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = svc.cfg.SweepInterval
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, sweeping on every tick. Sweep failures
// are logged and never propagate: maintenance must not take the server down.
func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	w.log.Info("credential.sweep.start", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("credential.sweep.stop")
			return
		case <-t.C:
			w.sweep(ctx)
		}
	}
}

// SweepNow runs one sweep on demand, for the operational trigger.
func (w *Sweeper) SweepNow(ctx context.Context) (int64, error) {
	return w.svc.SweepExpired(ctx, time.Now().UTC())
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.svc.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		w.log.Error("credential.sweep.fail", "err", err)
		return
	}
	if n > 0 {
		w.log.Info("credential.sweep.ok", "deleted", n)
	}
}
