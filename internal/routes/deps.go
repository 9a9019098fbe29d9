// Package routes registers every HTTP route on the router. Handlers and
// middleware are built in main and handed in through the Deps structs.
package routes

import (
	"net/http"

	"github.com/dukerupert/motorworks/internal/handler/api"
	"github.com/dukerupert/motorworks/internal/handler/webhook"
	"github.com/dukerupert/motorworks/internal/router"
)

// APIDeps contains dependencies for the JSON API routes
type APIDeps struct {
	CartHandler    *api.CartHandler
	OrderHandler   *api.OrderHandler
	BookingHandler *api.BookingHandler
	PaymentHandler *api.PaymentHandler

	// PaymentRateLimit guards routes that reach a payment provider.
	// Optional; nil disables it.
	PaymentRateLimit router.Middleware
}

// WebhookDeps contains dependencies for provider webhook routes
type WebhookDeps struct {
	PaymentHandler *webhook.PaymentHandler
}

// SystemDeps contains dependencies for operational routes
type SystemDeps struct {
	// Metrics serves the Prometheus scrape endpoint. Optional.
	Metrics http.Handler

	// Ready reports whether backing stores are reachable. Optional; without
	// it /healthz always reports ok.
	Ready func(r *http.Request) error
}
