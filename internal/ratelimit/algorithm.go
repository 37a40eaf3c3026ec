package ratelimit

import (
	"context"
	"time"
)

// Algorithm decides admission for a key under a policy. Every implementation
// keeps the same contract: (key, policy, now) -> (allowed, remaining, resetIn).
type Algorithm interface {
	Admit(ctx context.Context, key string, p Policy, now time.Time) (Decision, error)
	// Sweep drops state for keys not touched since cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// FixedWindow counts requests in discrete windows that start at the first
// request of a key. It allows up to twice the limit across a window boundary.
type FixedWindow struct {
	store CounterStore
}

// NewFixedWindow creates a fixed-window algorithm over store.
func NewFixedWindow(store CounterStore) *FixedWindow {
	return &FixedWindow{store: store}
}

// Admit implements Algorithm.
func (f *FixedWindow) Admit(ctx context.Context, key string, p Policy, now time.Time) (Decision, error) {
	var d Decision
	err := f.store.Update(ctx, key, func(rec Counter, found bool) (Counter, bool) {
		next, dec, write := admitFixedWindow(rec, found, p, now)
		d = dec
		return next, write
	})
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// Sweep implements Algorithm.
func (f *FixedWindow) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	return f.store.Sweep(ctx, cutoff)
}
