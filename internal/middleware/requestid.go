package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/domain"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestID tags the request with an id, reusing the gateway's when it is
// usable, and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(domain.NewContextWithRequestID(r.Context(), id)))
	})
}

// Ids end up in log lines and Sentry tags, so only short printable ASCII
// is kept.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
