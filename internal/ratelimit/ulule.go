package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
)

// Ulule runs the fixed-window contract on top of a ulule/limiter store, so the
// memory and Redis drivers of that library can back the gateway. The store keeps
// its own clock and expiry; now only shapes ResetIn.
type Ulule struct {
	store limiter.Store
}

// NewUlule wraps a ulule/limiter store.
func NewUlule(store limiter.Store) *Ulule {
	return &Ulule{store: store}
}

// Admit implements Algorithm. The store is peeked first so a denial does not
// consume quota.
func (u *Ulule) Admit(ctx context.Context, key string, p Policy, now time.Time) (Decision, error) {
	r := limiter.Rate{Period: p.Window, Limit: int64(p.MaxRequests)}

	peek, err := u.store.Peek(ctx, key, r)
	if err != nil {
		return Decision{}, fmt.Errorf("peek %s: %w", key, err)
	}
	if peek.Reached || peek.Remaining <= 0 {
		return Decision{
			Allowed: false,
			Limit:   p.MaxRequests,
			ResetIn: resetFromUnix(peek.Reset, now, p.Window),
		}, nil
	}

	lctx, err := u.store.Increment(ctx, key, 1, r)
	if err != nil {
		return Decision{}, fmt.Errorf("increment %s: %w", key, err)
	}
	d := Decision{
		Allowed:   !lctx.Reached,
		Limit:     p.MaxRequests,
		Remaining: int(lctx.Remaining),
		ResetIn:   resetFromUnix(lctx.Reset, now, p.Window),
	}
	if lctx.Reached {
		d.Remaining = 0
	}
	return d, nil
}

// Sweep implements Algorithm. ulule stores expire their own keys.
func (u *Ulule) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func resetFromUnix(reset int64, now time.Time, window time.Duration) time.Duration {
	if reset <= 0 {
		return window
	}
	d := time.Unix(reset, 0).Sub(now)
	if d < 0 {
		return 0
	}
	if d > window {
		return window
	}
	return d
}
