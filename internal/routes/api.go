package routes

import (
	"github.com/dukerupert/motorworks/internal/middleware"
	"github.com/dukerupert/motorworks/internal/router"
)

// RegisterAPIRoutes registers the JSON API.
//
// Cart routes accept anonymous sessions (X-Session-ID). Everything else
// requires an actor; status changes, refunds and slot blocks require staff.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Cart: authenticated user or anonymous session
	cart := deps.CartHandler
	r.Get("/api/cart", cart.Get)
	r.Delete("/api/cart", cart.Clear)
	r.Post("/api/cart/items", cart.AddItem)
	r.Put("/api/cart/items/{id}", cart.UpdateItem)
	r.Delete("/api/cart/items/{id}", cart.RemoveItem)

	// Catalog lookups are public
	r.Get("/api/services/{id}/availability", deps.BookingHandler.Availability)
	r.Get("/api/shipping-methods", deps.OrderHandler.ShippingMethods)

	authed := r.Group(middleware.RequireActor)
	authed.Post("/api/cart/merge", cart.Merge)
	authed.Post("/api/cart/convert", cart.Convert)

	// Orders
	orders := deps.OrderHandler
	authed.Post("/api/orders", orders.Create)
	authed.Get("/api/orders", orders.List)
	authed.Get("/api/orders/{id}", orders.Get)
	authed.Get("/api/order-numbers/{number}", orders.GetByNumber)
	authed.Post("/api/orders/{id}/cancel", orders.Cancel)

	// Bookings
	bookings := deps.BookingHandler
	authed.Post("/api/bookings", bookings.Create)
	authed.Get("/api/bookings", bookings.List)
	authed.Get("/api/bookings/{id}", bookings.Get)
	authed.Get("/api/booking-numbers/{number}", bookings.GetByNumber)
	authed.Post("/api/bookings/{id}/cancel", bookings.Cancel)

	// Payments
	payments := deps.PaymentHandler
	charging := authed
	if deps.PaymentRateLimit != nil {
		charging = authed.Group(deps.PaymentRateLimit)
	}
	charging.Post("/api/payments", payments.Create)
	charging.Post("/api/payments/{id}/process", payments.Process)
	charging.Post("/api/payments/{id}/retry", payments.Retry)
	authed.Get("/api/payments/{id}", payments.Get)
	authed.Get("/api/payments/{id}/refunds", payments.Refunds)

	// Staff
	staff := r.Group(middleware.RequireStaff)
	staff.Post("/api/orders/{id}/status", orders.UpdateStatus)
	staff.Post("/api/bookings/{id}/status", bookings.UpdateStatus)
	staff.Post("/api/services/{id}/blocks", bookings.BlockSlot)
	staff.Delete("/api/blocks/{id}", bookings.UnblockSlot)
	staff.Post("/api/payments/{id}/refund", payments.Refund)
}
