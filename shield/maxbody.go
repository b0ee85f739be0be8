package shield

import (
	"net/http"
	"strings"
)

// MaxBody returns middleware that limits the request body size for JSON
// and form-encoded requests — the two content types this service's
// endpoints actually decode — and for requests with no Content-Type.
// Other content types are passed through.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ct := r.Header.Get("Content-Type")
			if r.Body != nil && (ct == "" || strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "application/x-www-form-urlencoded")) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
