package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket smooths bursts at window boundaries: each class refills
// MaxRequests tokens per Window, with a bucket of MaxRequests.
type TokenBucket struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucket creates an in-memory token bucket algorithm.
func NewTokenBucket() *TokenBucket {
	return &TokenBucket{entries: make(map[string]*bucketEntry)}
}

func refillRate(p Policy) rate.Limit {
	return rate.Every(p.Window / time.Duration(p.MaxRequests))
}

// Admit implements Algorithm.
func (b *TokenBucket) Admit(_ context.Context, key string, p Policy, now time.Time) (Decision, error) {
	limit := refillRate(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	ent, ok := b.entries[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(limit, p.MaxRequests)}
		b.entries[key] = ent
	} else if ent.lim.Limit() != limit || ent.lim.Burst() != p.MaxRequests {
		ent.lim.SetLimitAt(now, limit)
		ent.lim.SetBurstAt(now, p.MaxRequests)
	}
	ent.lastSeen = now

	allowed := ent.lim.AllowN(now, 1)
	tokens := ent.lim.TokensAt(now)
	perSecond := float64(limit)

	d := Decision{
		Allowed:   allowed,
		Limit:     p.MaxRequests,
		Remaining: int(math.Max(0, math.Floor(tokens))),
	}
	if allowed {
		d.ResetIn = secondsToDuration((float64(p.MaxRequests) - tokens) / perSecond)
	} else {
		d.Remaining = 0
		d.ResetIn = secondsToDuration((1 - tokens) / perSecond)
	}
	return d, nil
}

// Sweep implements Algorithm.
func (b *TokenBucket) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for k, ent := range b.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(b.entries, k)
			removed++
		}
	}
	return removed, nil
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
