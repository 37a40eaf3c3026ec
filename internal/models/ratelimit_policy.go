package models

import (
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
)

// RateLimitPolicy is a persisted policy override for one endpoint class.
type RateLimitPolicy struct {
	Class       string    `json:"class"`
	WindowMs    int64     `json:"window_ms"`
	MaxRequests int       `json:"max_requests"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewRateLimitPolicy builds a persisted override from a class and policy.
func NewRateLimitPolicy(class ratelimit.EndpointClass, p ratelimit.Policy) *RateLimitPolicy {
	return &RateLimitPolicy{
		Class:       string(class),
		WindowMs:    p.Window.Milliseconds(),
		MaxRequests: p.MaxRequests,
	}
}

// Window returns the window length as a duration.
func (p *RateLimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowMs) * time.Millisecond
}

// ToPolicy validates the override and converts it to a limiter policy.
func (p *RateLimitPolicy) ToPolicy() (ratelimit.EndpointClass, ratelimit.Policy, error) {
	class, err := ratelimit.ParseEndpointClass(p.Class)
	if err != nil {
		return "", ratelimit.Policy{}, err
	}
	policy := ratelimit.Policy{Window: p.Window(), MaxRequests: p.MaxRequests}
	if err := policy.Validate(); err != nil {
		return "", ratelimit.Policy{}, err
	}
	return class, policy, nil
}
