package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor sweeps the limiter on a fixed interval, in addition to the
// opportunistic sweeps done on the request path.
type Janitor struct {
	limiter  *Limiter
	interval time.Duration
	log      *zap.Logger
}

// NewJanitor creates a janitor for l. A non-positive interval disables it.
func NewJanitor(l *Limiter, interval time.Duration, log *zap.Logger) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{limiter: l, interval: interval, log: log}
}

// Start runs the sweep loop until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	if j.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.collect(ctx)
		}
	}
}

func (j *Janitor) collect(ctx context.Context) {
	n, err := j.limiter.Sweep(ctx, j.limiter.Now())
	if err != nil {
		j.log.Warn("rate_limit_janitor_sweep_failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("rate_limit_janitor_swept", zap.Int("removed", n))
	}
}
