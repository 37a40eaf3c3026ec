package ratelimit

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// EndpointClass is a coarse category of request used to select a rate limit policy.
type EndpointClass string

const (
	// ClassAuth covers the authentication namespace.
	ClassAuth EndpointClass = "auth"
	// ClassAPI covers every other path under the API namespace.
	ClassAPI EndpointClass = "api"
	// ClassGeneral covers pages and everything else.
	ClassGeneral EndpointClass = "general"
)

const (
	apiPrefix  = "/api"
	authPrefix = "/api/auth"
)

// ErrUnknownClass is returned when a class name does not match any endpoint class.
var ErrUnknownClass = errors.New("unknown endpoint class")

// Classes lists every endpoint class in a stable order.
func Classes() []EndpointClass {
	return []EndpointClass{ClassAuth, ClassAPI, ClassGeneral}
}

// Valid reports whether c is one of the known endpoint classes.
func (c EndpointClass) Valid() bool {
	switch c {
	case ClassAuth, ClassAPI, ClassGeneral:
		return true
	default:
		return false
	}
}

// ParseEndpointClass parses a class name, ignoring case and surrounding whitespace.
func ParseEndpointClass(s string) (EndpointClass, error) {
	c := EndpointClass(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
	}
	return c, nil
}

// staticPrefixes are framework-internal and asset paths that are never limited.
var staticPrefixes = []string{
	"/_next/",
	"/static/",
	"/assets/",
}

// Classify maps a request path to exactly one endpoint class.
// Paths that cannot be interpreted fall back to ClassGeneral.
func Classify(p string) EndpointClass {
	if p == "" {
		return ClassGeneral
	}
	switch {
	case underPrefix(p, authPrefix):
		return ClassAuth
	case underPrefix(p, apiPrefix):
		return ClassAPI
	default:
		return ClassGeneral
	}
}

// Bypass reports whether the path is a static asset or framework-internal path
// that skips classification and limiting entirely.
func Bypass(p string) bool {
	if p == "/favicon.ico" {
		return true
	}
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	// API paths are limited even when the last segment looks like a file name.
	if underPrefix(p, apiPrefix) {
		return false
	}
	return path.Ext(path.Base(p)) != ""
}

func underPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
