package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	logpkg "github.com/baller70/bookmarkaihub-sub004/internal/logger"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/baller70/bookmarkaihub-sub004/internal/request"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RateLimitResponse is the body returned with 429 Too Many Requests.
type RateLimitResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RateLimit classifies each request, charges it against the client's counter
// for that class and rejects it with 429 once the class limit is reached.
// Static assets and exemptPaths pass through without headers.
func RateLimit(limiter *ratelimit.Limiter, identifier *request.Identifier, logger *zap.Logger, exemptPaths ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if _, ok := exempt[path]; ok || ratelimit.Bypass(path) {
				next.ServeHTTP(w, r)
				return
			}

			class := ratelimit.Classify(path)
			clientID := identifier.ClientID(r)
			d := limiter.CheckAndAdmit(r.Context(), clientID, class, limiter.Now())

			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("ratelimit.class", string(class)),
				attribute.Bool("ratelimit.allowed", d.Allowed),
			)

			resetSeconds := d.ResetSeconds()
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("rate_limit_exceeded",
				zap.String("class", string(class)),
				zap.String("client_id", logpkg.SanitizeClientID(clientID)),
				zap.String("path", logpkg.SanitizePath(path)),
				zap.Int("reset_seconds", resetSeconds),
			)
			h.Set("Retry-After", strconv.Itoa(resetSeconds))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			body := RateLimitResponse{
				Error:   "Too Many Requests",
				Message: fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", resetSeconds),
			}
			if err := json.NewEncoder(w).Encode(body); err != nil {
				logger.Error("failed_to_encode_rate_limit_response", zap.Error(err))
			}
		})
	}
}
