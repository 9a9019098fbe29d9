package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartTTL is how long an untouched cart lives before the sweep removes it.
const CartTTL = 30 * 24 * time.Hour

// Cart holds pending selections for exactly one of a user or an anonymous session.
type Cart struct {
	ID            uuid.UUID  `json:"id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	SessionID     string     `json:"session_id,omitempty"`
	SubtotalCents int64      `json:"subtotal_cents"`
	ExpiresAt     time.Time  `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CartItem references exactly one of a product or a service.
type CartItem struct {
	ID        uuid.UUID  `json:"id"`
	CartID    uuid.UUID  `json:"cart_id"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	ServiceID *uuid.UUID `json:"service_id,omitempty"`
	Quantity  int        `json:"quantity"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ItemRef identifies a catalog entry placed in a cart.
type ItemRef struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	ServiceID *uuid.UUID `json:"service_id,omitempty"`
}

// Valid reports whether exactly one reference is set.
func (r ItemRef) Valid() bool {
	return (r.ProductID == nil) != (r.ServiceID == nil)
}

// Ref returns the item's catalog reference.
func (i CartItem) Ref() ItemRef {
	return ItemRef{ProductID: i.ProductID, ServiceID: i.ServiceID}
}

// SameRef reports whether two references point at the same catalog entry.
func (r ItemRef) SameRef(o ItemRef) bool {
	switch {
	case r.ProductID != nil && o.ProductID != nil:
		return *r.ProductID == *o.ProductID
	case r.ServiceID != nil && o.ServiceID != nil:
		return *r.ServiceID == *o.ServiceID
	}
	return false
}
