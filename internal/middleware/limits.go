package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize is the default maximum request body size (1MB).
	// API payloads are small JSON documents.
	DefaultMaxBodySize = 1 * MB

	// WebhookMaxBodySize is for provider notifications (512KB)
	WebhookMaxBodySize = 512 * KB
)

// MaxBodySize limits the size of request bodies.
// If no size is provided, DefaultMaxBodySize is used.
// If the request body exceeds maxBytes, it returns 413 Request Entity Too Large.
func MaxBodySize(maxBytes ...int64) func(http.Handler) http.Handler {
	limit := int64(DefaultMaxBodySize)
	if len(maxBytes) > 0 {
		limit = maxBytes[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > limit {
				reject(w, r, errBodyTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultTimeout is the default request timeout (30 seconds). It must exceed
// the payment provider timeout so a timed-out charge is still settled.
const DefaultTimeout = 30 * time.Second

// Timeout cancels the request context after d and answers 504 when the
// handler returns on the expired deadline without writing a response.
// If no duration is provided, DefaultTimeout is used.
func Timeout(d ...time.Duration) func(http.Handler) http.Handler {
	duration := DefaultTimeout
	if len(d) > 0 && d[0] > 0 {
		duration = d[0]
	}
	return chimw.Timeout(duration)
}

// RealIP rewrites RemoteAddr from X-Real-IP / X-Forwarded-For so the rate
// limiter keys on the client rather than the proxy.
func RealIP(next http.Handler) http.Handler {
	return chimw.RealIP(next)
}
