package repository

import (
	"context"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
)

// Querier is the persistence surface the workflows depend on. Queries (pgx)
// and memstore.Store both implement it.
type Querier interface {
	// Catalog
	GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error)
	DecrementStock(ctx context.Context, arg StockParams) (bool, error)
	IncrementStock(ctx context.Context, arg StockParams) error
	GetService(ctx context.Context, id uuid.UUID) (domain.Service, error)
	ListServiceAddOns(ctx context.Context, serviceID uuid.UUID) ([]domain.ServiceAddOn, error)

	// Identity
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (address.Address, error)

	// Carts
	CreateCart(ctx context.Context, arg CreateCartParams) (domain.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (domain.Cart, error)
	GetCartForUpdate(ctx context.Context, id uuid.UUID) (domain.Cart, error)
	GetCartByUser(ctx context.Context, userID uuid.UUID) (domain.Cart, error)
	GetCartBySession(ctx context.Context, sessionID string) (domain.Cart, error)
	AssignCartToUser(ctx context.Context, cartID, userID uuid.UUID) error
	UpdateCartTotals(ctx context.Context, arg UpdateCartTotalsParams) error
	DeleteCart(ctx context.Context, id uuid.UUID) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error)
	UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (domain.CartItem, error)
	SetCartItemQuantity(ctx context.Context, arg SetCartItemQuantityParams) (domain.CartItem, error)
	DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteCartItems(ctx context.Context, cartID uuid.UUID) error
	DeleteExpiredCarts(ctx context.Context, now time.Time, limit int) (int, error)

	// Numbering
	NextSequence(ctx context.Context, scope string, day time.Time) (int, error)

	// Orders
	InsertOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, page Page) ([]domain.Order, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (bool, error)

	// Bookings
	InsertBooking(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (domain.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, page Page) ([]domain.Booking, error)
	ListActiveBookings(ctx context.Context, arg DateRangeParams) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, arg UpdateBookingStatusParams) (bool, error)
	InsertSlotBlock(ctx context.Context, b domain.SlotBlock) error
	DeleteSlotBlock(ctx context.Context, id uuid.UUID) error
	ListSlotBlocks(ctx context.Context, arg DateRangeParams) ([]domain.SlotBlock, error)

	// Payments
	InsertPayment(ctx context.Context, p domain.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	GetPaymentByProviderTx(ctx context.Context, provider, transactionID string) (domain.Payment, error)
	UpdatePayment(ctx context.Context, p domain.Payment, from domain.PaymentStatus) (bool, error)
	InsertPaymentRefund(ctx context.Context, r domain.PaymentRefund) error
	SettlePaymentRefund(ctx context.Context, r domain.PaymentRefund) (bool, error)
	ListPaymentRefunds(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentRefund, error)
}

// Store is a Querier that can run a function as one transaction. The
// Querier passed to fn is bound to the transaction; the unit commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}
