package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Catalog read models. The catalog collaborator owns these records; the
// commerce core reads them and, for products, adjusts stock through the
// inventory ledger.

type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
)

type Product struct {
	ID             uuid.UUID     `json:"id"`
	SKU            string        `json:"sku"`
	Name           string        `json:"name"`
	PriceCents     int64         `json:"price_cents"`
	Category       string        `json:"category"`
	Status         ProductStatus `json:"status"`
	TrackInventory bool          `json:"track_inventory"`
	StockQuantity  int           `json:"stock_quantity"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Purchasable reports whether the product can be sold at all, ignoring stock.
func (p Product) Purchasable() bool {
	return p.Status == ProductStatusActive
}

// HourRange is a half-open window of opening hours, [Start, End).
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Schedule describes when a service can be booked.
type Schedule struct {
	OpenWeekdays      []time.Weekday `json:"open_weekdays"`
	HourRanges        []HourRange    `json:"hour_ranges"`
	MaxBookingsPerDay int            `json:"max_bookings_per_day"` // 0 = unlimited
}

func (s Schedule) OpenOn(day time.Weekday) bool {
	return slices.Contains(s.OpenWeekdays, day)
}

type Service struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	PriceCents     int64     `json:"price_cents"`
	DurationHours  int       `json:"duration_hours"`
	Schedule       Schedule  `json:"schedule"`
	MinAdvanceDays int       `json:"min_advance_days"`
	MaxAdvanceDays int       `json:"max_advance_days"`
	Active         bool      `json:"active"`
}

type ServiceAddOn struct {
	ID         uuid.UUID `json:"id"`
	ServiceID  uuid.UUID `json:"service_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
}
