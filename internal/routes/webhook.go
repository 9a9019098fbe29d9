package routes

import (
	"github.com/dukerupert/motorworks/internal/middleware"
	"github.com/dukerupert/motorworks/internal/router"
)

// RegisterWebhookRoutes registers provider webhook routes.
//
// Note: Webhook routes do NOT have authentication middleware. The payment
// service verifies each notification's signature before acting on it.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/{provider}", deps.PaymentHandler.HandleWebhook,
		middleware.MaxBodySize(middleware.WebhookMaxBodySize))
}
