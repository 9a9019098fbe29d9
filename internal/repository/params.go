package repository

import (
	"time"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
)

// Page is a limit/offset window. A zero Limit means DefaultPageSize.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type StockParams struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateCartParams struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	SessionID string
	ExpiresAt time.Time
	Now       time.Time
}

// UpdateCartTotalsParams sets the cached subtotal. A nil ExpiresAt leaves
// the expiry untouched.
type UpdateCartTotalsParams struct {
	CartID        uuid.UUID
	SubtotalCents int64
	ExpiresAt     *time.Time
	Now           time.Time
}

type UpsertCartItemParams struct {
	ID       uuid.UUID
	CartID   uuid.UUID
	Ref      domain.ItemRef
	Quantity int
	Now      time.Time
}

type SetCartItemQuantityParams struct {
	CartID   uuid.UUID
	ItemID   uuid.UUID
	Quantity int
	Now      time.Time
}

type ListOrdersParams struct {
	Status *domain.OrderStatus
	Page   Page
}

// UpdateOrderStatusParams moves an order from From to To. The update only
// applies when the stored status still equals From.
type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	From           domain.OrderStatus
	To             domain.OrderStatus
	TrackingNumber *string
	CancelReason   string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
	Now            time.Time
}

// DateRangeParams selects rows for one service with From <= date <= To.
type DateRangeParams struct {
	ServiceID uuid.UUID
	From      time.Time
	To        time.Time
}

// UpdateBookingStatusParams moves a booking from From to To under the same
// compare-and-set rule as orders.
type UpdateBookingStatusParams struct {
	ID                 uuid.UUID
	From               domain.BookingStatus
	To                 domain.BookingStatus
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	Now                time.Time
}
