package routes

import (
	"net/http"

	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/router"
)

// RegisterSystemRoutes registers /healthz and, when configured, /metrics.
func RegisterSystemRoutes(r *router.Router, deps SystemDeps) {
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(req); err != nil {
				handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
}
