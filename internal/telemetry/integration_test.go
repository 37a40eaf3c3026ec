package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/baller70/bookmarkaihub-sub004/internal/middleware"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/baller70/bookmarkaihub-sub004/internal/request"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestRateLimitSpanAttributes verifies that the rate limit decision is
// recorded on the request span and that inbound trace context is honoured.
func TestRateLimitSpanAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	limiter, err := ratelimit.New(ratelimit.NewFixedWindow(ratelimit.NewMemoryStore()), ratelimit.WithSweepProbability(0))
	if err != nil {
		t.Fatalf("ratelimit.New() error = %v", err)
	}
	id, err := request.NewIdentifier("", nil)
	if err != nil {
		t.Fatalf("NewIdentifier() error = %v", err)
	}

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("test-gateway",
		otelmux.WithTracerProvider(tp),
		otelmux.WithPropagators(propagation.TraceContext{}),
	))
	r.Use(middleware.RateLimit(limiter, id, zap.NewNop()))
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		path        string
		traceParent string
		wantClass   string
	}{
		{name: "api request", path: "/api/bookmarks", wantClass: "api"},
		{name: "auth request with parent", path: "/api/auth/session", traceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", wantClass: "auth"},
		{name: "bypassed asset", path: "/_next/static/app.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status OK, got %d", rr.Code)
			}

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if tt.traceParent != "" && span.SpanContext.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
				t.Errorf("Expected inbound trace id, got %s", span.SpanContext.TraceID())
			}

			attrs := make(map[attribute.Key]attribute.Value, len(span.Attributes))
			for _, kv := range span.Attributes {
				attrs[kv.Key] = kv.Value
			}
			class, ok := attrs["ratelimit.class"]
			if tt.wantClass == "" {
				if ok {
					t.Errorf("Expected no ratelimit.class on bypassed path, got %s", class.AsString())
				}
				return
			}
			if !ok || class.AsString() != tt.wantClass {
				t.Errorf("Expected ratelimit.class %q, got %v", tt.wantClass, class.AsString())
			}
			if allowed, ok := attrs["ratelimit.allowed"]; !ok || !allowed.AsBool() {
				t.Error("Expected ratelimit.allowed=true")
			}
		})
	}
}
