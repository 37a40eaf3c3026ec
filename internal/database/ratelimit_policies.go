package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/models"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
)

// RateLimitPolicyRepository persists per-class policy overrides.
type RateLimitPolicyRepository struct {
	db *DB
}

// NewRateLimitPolicyRepository creates a new rate limit policy repository.
func NewRateLimitPolicyRepository(db *DB) *RateLimitPolicyRepository {
	return &RateLimitPolicyRepository{db: db}
}

// List returns every stored override ordered by class.
func (r *RateLimitPolicyRepository) List(ctx context.Context) ([]*models.RateLimitPolicy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT class, window_ms, max_requests, created_at, updated_at
		FROM rate_limit_policies ORDER BY class
	`)
	if err != nil {
		return nil, fmt.Errorf("list rate limit policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.RateLimitPolicy
	for rows.Next() {
		p := &models.RateLimitPolicy{}
		if err := rows.Scan(&p.Class, &p.WindowMs, &p.MaxRequests, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limit policy: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limit policies: %w", err)
	}
	return out, nil
}

// Get returns the override for class, or nil when none is stored.
func (r *RateLimitPolicyRepository) Get(ctx context.Context, class ratelimit.EndpointClass) (*models.RateLimitPolicy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class, window_ms, max_requests, created_at, updated_at
		FROM rate_limit_policies WHERE class = $1
	`, string(class))
	p := &models.RateLimitPolicy{}
	err := row.Scan(&p.Class, &p.WindowMs, &p.MaxRequests, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit policy: %w", err)
	}
	return p, nil
}

// Upsert validates and stores an override.
func (r *RateLimitPolicyRepository) Upsert(ctx context.Context, p *models.RateLimitPolicy) error {
	if _, _, err := p.ToPolicy(); err != nil {
		return err
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_limit_policies (class, window_ms, max_requests, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (class) DO UPDATE SET
			window_ms = EXCLUDED.window_ms,
			max_requests = EXCLUDED.max_requests,
			updated_at = EXCLUDED.updated_at
	`, p.Class, p.WindowMs, p.MaxRequests, now, now)
	if err != nil {
		return fmt.Errorf("upsert rate limit policy: %w", err)
	}
	return nil
}

// Delete removes the override for class. It reports whether a row existed.
func (r *RateLimitPolicyRepository) Delete(ctx context.Context, class ratelimit.EndpointClass) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_policies WHERE class = $1`, string(class))
	if err != nil {
		return false, fmt.Errorf("delete rate limit policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rate limit policy: %w", err)
	}
	return n > 0, nil
}

// Policies returns the stored overrides as limiter policies. Rows that fail
// validation are returned in skipped rather than failing the whole load.
func (r *RateLimitPolicyRepository) Policies(ctx context.Context) (ratelimit.Policies, []string, error) {
	rows, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	policies, skipped := ToPolicies(rows)
	return policies, skipped, nil
}

// ToPolicies converts stored rows, collecting the classes of invalid rows.
func ToPolicies(rows []*models.RateLimitPolicy) (ratelimit.Policies, []string) {
	out := make(ratelimit.Policies, len(rows))
	var skipped []string
	for _, row := range rows {
		class, p, err := row.ToPolicy()
		if err != nil {
			skipped = append(skipped, row.Class)
			continue
		}
		out[class] = p
	}
	return out, skipped
}
