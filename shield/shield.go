// Package shield provides reusable HTTP security middleware for
// simplepaged's control-plane API. It consolidates security headers, body
// limits, request tracing, and HEAD method handling into a single
// importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(64 * 1024))
//	r.Use(shield.TraceID)
//	r.Use(shield.HeadToGet)
//
// Or apply the default stack in one call:
//
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack for simplepaged's
// JSON API: no session/cookie concerns, no rate limiting (the page
// manager's own queue-depth limit is the backpressure mechanism here).
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64 * 1024),
		TraceID,
	}
}
