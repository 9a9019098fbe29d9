package domain

import (
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/google/uuid"
)

// Order is created only by converting a cart. After creation only status,
// tracking and timestamp fields change.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          uuid.UUID       `json:"user_id"`
	Status          OrderStatus     `json:"status"`
	SubtotalCents   int64           `json:"subtotal_cents"`
	TaxCents        int64           `json:"tax_cents"`
	ShippingCents   int64           `json:"shipping_cents"`
	DiscountCents   int64           `json:"discount_cents"`
	TotalCents      int64           `json:"total_cents"`
	ShippingAddress address.Address `json:"shipping_address"`
	BillingAddress  address.Address `json:"billing_address"`
	ShippingMethod  string          `json:"shipping_method"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`

	Items []OrderItem `json:"items"`
}

// OrderItem is an immutable snapshot of a product line at order time.
type OrderItem struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	SKU            string    `json:"sku"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int64     `json:"line_total_cents"`
}
