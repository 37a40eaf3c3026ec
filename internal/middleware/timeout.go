package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds handlers the gateway serves itself.
const DefaultRequestTimeout = 10 * time.Second

const timeoutBody = `{"success":false,"error":"Service Unavailable","message":"Request timed out"}`

// Timeout wraps next in http.TimeoutHandler. It is not used on the proxy
// route since it would buffer streamed responses.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
