package request

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// AnonymousClientID is the shared bucket for requests that carry no usable identity.
const AnonymousClientID = "anonymous"

// DefaultEdgeHeader is the client IP header set by the CDN in front of the app.
const DefaultEdgeHeader = "CF-Connecting-IP"

type contextKey string

const requestIDContextKey contextKey = "request_id"

// Identifier derives a best-effort client identifier from request headers.
type Identifier struct {
	edgeHeader     string
	trustedProxies []netip.Prefix
}

// NewIdentifier creates an Identifier. edgeHeader defaults to DefaultEdgeHeader.
// trustedProxies is a list of CIDRs or bare IPs; when non-empty, forwarding
// headers are only honoured if the immediate peer is inside one of them.
func NewIdentifier(edgeHeader string, trustedProxies []string) (*Identifier, error) {
	if strings.TrimSpace(edgeHeader) == "" {
		edgeHeader = DefaultEdgeHeader
	}
	id := &Identifier{edgeHeader: http.CanonicalHeaderKey(strings.TrimSpace(edgeHeader))}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		id.trustedProxies = append(id.trustedProxies, prefix)
	}
	return id, nil
}

func parsePrefix(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		return netip.ParsePrefix(raw)
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ClientID returns, in priority order, the edge header, X-Real-IP, the first
// X-Forwarded-For entry, or AnonymousClientID.
func (id *Identifier) ClientID(r *http.Request) string {
	if len(id.trustedProxies) > 0 && !id.fromTrustedProxy(r) {
		if host := remoteHost(r); host != "" {
			return host
		}
		return AnonymousClientID
	}

	if v := strings.TrimSpace(r.Header.Get(id.edgeHeader)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if v := strings.TrimSpace(first); v != "" {
			return v
		}
	}
	return AnonymousClientID
}

func (id *Identifier) fromTrustedProxy(r *http.Request) bool {
	addr, err := netip.ParseAddr(remoteHost(r))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range id.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the request id, or "" when missing.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
