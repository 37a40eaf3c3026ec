package ratelimit

import (
	"math"
	"strconv"
	"time"
)

// Counter is the fixed-window record kept per (client, class) key.
type Counter struct {
	Count       int
	WindowStart time.Time
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is the time left until the current window ends.
	ResetIn time.Duration
}

// ResetSeconds returns ResetIn rounded up to whole seconds, never negative.
func (d Decision) ResetSeconds() int {
	if d.ResetIn <= 0 {
		return 0
	}
	return int(math.Ceil(d.ResetIn.Seconds()))
}

// Key builds the composite counter key for a client and class.
func Key(clientID string, class EndpointClass) string {
	return string(class) + ":" + clientID
}

// admitFixedWindow applies one request to rec. It returns the record to store,
// the decision, and whether the record changed. Denials leave rec untouched.
func admitFixedWindow(rec Counter, found bool, p Policy, now time.Time) (Counter, Decision, bool) {
	elapsed := now.Sub(rec.WindowStart)
	if !found || elapsed >= p.Window {
		return Counter{Count: 1, WindowStart: now}, Decision{
			Allowed:   true,
			Limit:     p.MaxRequests,
			Remaining: p.MaxRequests - 1,
			ResetIn:   p.Window,
		}, true
	}

	resetIn := p.Window - elapsed
	if rec.Count >= p.MaxRequests {
		return rec, Decision{
			Allowed:   false,
			Limit:     p.MaxRequests,
			Remaining: 0,
			ResetIn:   resetIn,
		}, false
	}

	rec.Count++
	return rec, Decision{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: p.MaxRequests - rec.Count,
		ResetIn:   resetIn,
	}, true
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
