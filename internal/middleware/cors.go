package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

const defaultAllowedOrigin = "http://localhost:3000"

// CORS creates rs/cors middleware for the comma-separated origins in frontendURL.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := AllowedOriginsSlice(frontendURL)
	if len(origins) == 0 {
		origins = []string{defaultAllowedOrigin}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", RequestIDHeader},
	})
	return c.Handler
}

// AllowedOriginsSlice splits a comma-separated origin list, dropping blanks and duplicates.
func AllowedOriginsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
