package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultRetention is how long a counter record may sit untouched before
	// garbage collection removes it. It must exceed every class window.
	DefaultRetention = time.Hour
	// DefaultSweepProbability is the fraction of checks that trigger a sweep.
	DefaultSweepProbability = 0.01
)

// Limiter is the admission-control component. It owns the policy table and
// delegates counting to an Algorithm.
type Limiter struct {
	alg Algorithm

	mu       sync.RWMutex
	policies Policies

	retention        time.Duration
	sweepProbability float64
	random           func() float64
	now              func() time.Time
	sweeping         atomic.Bool

	log     *zap.Logger
	metrics *MetricsCollector
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicies replaces the default policy table.
func WithPolicies(p Policies) Option {
	return func(l *Limiter) { l.policies = p.Clone() }
}

// WithRetention sets the garbage collection horizon.
func WithRetention(d time.Duration) Option {
	return func(l *Limiter) { l.retention = d }
}

// WithSweepProbability sets the fraction of checks that trigger an inline sweep.
// Zero disables inline sweeps.
func WithSweepProbability(p float64) Option {
	return func(l *Limiter) { l.sweepProbability = p }
}

// WithRandom overrides the random source used to pick sweeping checks.
func WithRandom(fn func() float64) Option {
	return func(l *Limiter) { l.random = fn }
}

// WithClock overrides the clock returned by Now.
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) { l.now = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *MetricsCollector) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New creates a Limiter backed by alg. It fails if the policies are invalid or
// the retention horizon does not outlast the longest window.
func New(alg Algorithm, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		alg:              alg,
		policies:         DefaultPolicies(),
		retention:        DefaultRetention,
		sweepProbability: DefaultSweepProbability,
		random:           rand.Float64,
		now:              time.Now,
		log:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.policies.Validate(); err != nil {
		return nil, err
	}
	if err := l.checkRetention(l.policies); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Limiter) checkRetention(ps Policies) error {
	if longest := ps.LongestWindow(); l.retention <= longest {
		return fmt.Errorf("%w: retention %s must exceed longest window %s", ErrInvalidPolicy, l.retention, longest)
	}
	return nil
}

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Policy returns the policy for class, treating unknown classes as general.
func (l *Limiter) Policy(class EndpointClass) Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.policies[class]; ok {
		return p
	}
	return l.policies[ClassGeneral]
}

// Policies returns a copy of the active policy table.
func (l *Limiter) Policies() Policies {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policies.Clone()
}

// CheckPolicies reports whether ps could be installed with SetPolicies.
func (l *Limiter) CheckPolicies(ps Policies) error {
	if err := ps.Validate(); err != nil {
		return err
	}
	return l.checkRetention(ps)
}

// SetPolicies swaps the policy table. Existing counters are kept; they are
// judged against the new policy from the next request on.
func (l *Limiter) SetPolicies(ps Policies) error {
	if err := l.CheckPolicies(ps); err != nil {
		return err
	}
	l.mu.Lock()
	l.policies = ps.Clone()
	l.mu.Unlock()
	return nil
}

// CheckAndAdmit decides whether a request from clientID to an endpoint of the
// given class may proceed. It never fails: when the algorithm errors, the
// request is admitted and the failure is logged.
func (l *Limiter) CheckAndAdmit(ctx context.Context, clientID string, class EndpointClass, now time.Time) Decision {
	if !class.Valid() {
		class = ClassGeneral
	}
	p := l.Policy(class)

	d, err := l.alg.Admit(ctx, Key(clientID, class), p, now)
	if err != nil {
		l.log.Warn("rate_limit_store_error_failing_open",
			zap.String("class", string(class)),
			zap.Error(err),
		)
		l.metrics.observeError(class)
		d = Decision{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests, ResetIn: p.Window}
	} else {
		l.metrics.observeDecision(class, d)
	}

	if l.sweepProbability > 0 && l.random() < l.sweepProbability {
		if _, err := l.Sweep(ctx, now); err != nil {
			l.log.Warn("rate_limit_sweep_failed", zap.Error(err))
		}
	}
	return d
}

// Sweep removes records older than the retention horizon. Concurrent calls
// while a sweep is running return immediately.
func (l *Limiter) Sweep(ctx context.Context, now time.Time) (int, error) {
	if !l.sweeping.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer l.sweeping.Store(false)

	n, err := l.alg.Sweep(ctx, now.Add(-l.retention))
	if err != nil {
		return 0, fmt.Errorf("sweep counters: %w", err)
	}
	l.metrics.observeSwept(n)
	if n > 0 {
		l.log.Debug("rate_limit_counters_swept", zap.Int("removed", n))
	}
	return n, nil
}
