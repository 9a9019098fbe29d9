package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/motorworks/internal/domain"
)

// WithRequestLogger stores a logger tagged with the request id, method,
// path and actor in the request context; handlers fetch it with
// domain.LoggerFromContext. Place it after RequestID and WithActor.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if id := domain.RequestIDFromContext(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if actor := domain.ActorFromContext(ctx); actor != nil {
				attrs = append(attrs, slog.Group("actor",
					slog.String("user_id", actor.UserID.String()),
					slog.String("role", actor.Role),
				))
			}
			next.ServeHTTP(w, r.WithContext(domain.NewContextWithLogger(ctx, base.With(attrs...))))
		})
	}
}
