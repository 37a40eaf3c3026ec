package ratelimit

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned when a policy or policy set fails validation.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy is the fixed-window configuration for one endpoint class.
type Policy struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// Validate checks that the window is positive and at least one request is allowed.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidPolicy, p.Window)
	}
	if p.MaxRequests < 1 {
		return fmt.Errorf("%w: max_requests must be at least 1, got %d", ErrInvalidPolicy, p.MaxRequests)
	}
	return nil
}

// Policies holds one policy per endpoint class.
type Policies map[EndpointClass]Policy

// DefaultPolicies returns the built-in policy table. Auth gets the longest window
// and lowest ceiling; general traffic gets the most headroom.
func DefaultPolicies() Policies {
	return Policies{
		ClassAuth:    {Window: 15 * time.Minute, MaxRequests: 20},
		ClassAPI:     {Window: time.Minute, MaxRequests: 100},
		ClassGeneral: {Window: time.Minute, MaxRequests: 200},
	}
}

// Validate requires a valid policy for every known class and no unknown classes.
func (ps Policies) Validate() error {
	for c, p := range ps {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownClass, c)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("class %s: %w", c, err)
		}
	}
	for _, c := range Classes() {
		if _, ok := ps[c]; !ok {
			return fmt.Errorf("%w: missing policy for class %s", ErrInvalidPolicy, c)
		}
	}
	return nil
}

// Clone returns a copy that can be modified without affecting ps.
func (ps Policies) Clone() Policies {
	out := make(Policies, len(ps))
	for c, p := range ps {
		out[c] = p
	}
	return out
}

// Merge returns a copy of ps with every entry of overrides applied on top.
func (ps Policies) Merge(overrides Policies) Policies {
	out := ps.Clone()
	for c, p := range overrides {
		out[c] = p
	}
	return out
}

// LongestWindow returns the largest window across all classes.
func (ps Policies) LongestWindow() time.Duration {
	var longest time.Duration
	for _, p := range ps {
		if p.Window > longest {
			longest = p.Window
		}
	}
	return longest
}

type policyFile struct {
	Policies map[string]Policy `yaml:"policies"`
}

// LoadPoliciesFile reads policy overrides from a YAML file of the form
//
//	policies:
//	  auth:
//	    window: 15m
//	    max_requests: 20
//
// and merges them over base. Classes absent from the file keep their base policy.
func LoadPoliciesFile(filename string, base Policies) (Policies, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data, base)
}

// ParsePolicies decodes YAML policy overrides and merges them over base.
func ParsePolicies(data []byte, base Policies) (Policies, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode policy file: %w", err)
	}
	overrides := make(Policies, len(f.Policies))
	for name, p := range f.Policies {
		c, err := ParseEndpointClass(name)
		if err != nil {
			return nil, err
		}
		overrides[c] = p
	}
	merged := base.Merge(overrides)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
