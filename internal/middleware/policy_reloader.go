package middleware

import (
	"context"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"go.uber.org/zap"
)

// PolicySource loads persisted policy overrides. Invalid rows are reported
// by class in skipped.
type PolicySource interface {
	Policies(ctx context.Context) (overrides ratelimit.Policies, skipped []string, err error)
}

// PolicyReloader periodically merges persisted overrides over the base
// policies and applies the result to the limiter.
type PolicyReloader struct {
	source   PolicySource
	limiter  *ratelimit.Limiter
	base     ratelimit.Policies
	log      *zap.Logger
	interval time.Duration
}

// NewPolicyReloader creates a reloader. base is the table overrides are merged onto.
func NewPolicyReloader(source PolicySource, limiter *ratelimit.Limiter, base ratelimit.Policies, log *zap.Logger, reloadInterval time.Duration) *PolicyReloader {
	return &PolicyReloader{
		source:   source,
		limiter:  limiter,
		base:     base.Clone(),
		log:      log,
		interval: reloadInterval,
	}
}

// Base returns a copy of the base policies.
func (r *PolicyReloader) Base() ratelimit.Policies {
	return r.base.Clone()
}

// Start runs the reload loop until ctx is cancelled.
func (r *PolicyReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Reload(ctx)
		}
	}
}

// Reload applies the current overrides. An override the limiter rejects
// (for example a window beyond the retention horizon) is skipped on its own
// and the class keeps its base policy. If the source fails the limiter keeps
// its previous policies.
func (r *PolicyReloader) Reload(ctx context.Context) error {
	overrides, skipped, err := r.source.Policies(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_rate_limit_policies_keeping_current", zap.Error(err))
		return err
	}
	for _, class := range skipped {
		r.log.Warn("skipping_invalid_rate_limit_policy", zap.String("class", class))
	}

	applied := r.base.Clone()
	accepted := 0
	for _, class := range ratelimit.Classes() {
		p, ok := overrides[class]
		if !ok {
			continue
		}
		candidate := applied.Merge(ratelimit.Policies{class: p})
		if err := r.limiter.CheckPolicies(candidate); err != nil {
			r.log.Warn("skipping_rejected_rate_limit_policy",
				zap.String("class", string(class)),
				zap.Duration("window", p.Window),
				zap.Int("max_requests", p.MaxRequests),
				zap.Error(err),
			)
			continue
		}
		applied = candidate
		accepted++
	}

	if err := r.limiter.SetPolicies(applied); err != nil {
		r.log.Error("failed_to_apply_rate_limit_policies", zap.Error(err))
		return err
	}
	r.log.Debug("rate_limit_policies_reloaded", zap.Int("overrides", accepted))
	return nil
}
