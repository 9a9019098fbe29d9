package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/memstore"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	product := domain.Product{ID: uuid.New(), Status: domain.ProductStatusActive, TrackInventory: true, StockQuantity: 5}
	store.PutProduct(product)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(q repository.Querier) error {
		ok, err := q.DecrementStock(ctx, repository.StockParams{ProductID: product.ID, Quantity: 3})
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity, "decrement must not survive rollback")
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	product := domain.Product{ID: uuid.New(), StockQuantity: 5}
	store.PutProduct(product)

	err := store.InTx(ctx, func(q repository.Querier) error {
		_, err := q.DecrementStock(ctx, repository.StockParams{ProductID: product.ID, Quantity: 2})
		return err
	})
	require.NoError(t, err)

	got, _ := store.GetProduct(ctx, product.ID)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestDecrementStock_IsConditional(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	product := domain.Product{ID: uuid.New(), StockQuantity: 1}
	store.PutProduct(product)

	ok, err := store.DecrementStock(ctx, repository.StockParams{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := store.GetProduct(ctx, product.ID)
	assert.Equal(t, 1, got.StockQuantity)
}

func TestInsertBooking_SlotConstraint(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	serviceID := uuid.New()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first := domain.Booking{ID: uuid.New(), BookingNumber: "BKG-1", ServiceID: serviceID, ScheduledDate: day, ScheduledHour: 9, Status: domain.BookingStatusPending}
	require.NoError(t, store.InsertBooking(ctx, first))

	dup := first
	dup.ID, dup.BookingNumber = uuid.New(), "BKG-2"
	err := store.InsertBooking(ctx, dup)
	assert.True(t, repository.IsUniqueViolation(err, repository.ConstraintBookingSlot))

	// A cancelled booking frees the slot.
	ok, err := store.UpdateBookingStatus(ctx, repository.UpdateBookingStatusParams{
		ID: first.ID, From: domain.BookingStatusPending, To: domain.BookingStatusCancelled, Now: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, store.InsertBooking(ctx, dup))
}

func TestUpdateOrderStatus_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	order := domain.Order{ID: uuid.New(), OrderNumber: "ORD-1", Status: domain.OrderStatusPending}
	require.NoError(t, store.InsertOrder(ctx, order))

	ok, err := store.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
		ID: order.ID, From: domain.OrderStatusConfirmed, To: domain.OrderStatusProcessing,
	})
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not apply")

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestNextSequence_ConcurrentCallersGetDistinctValues(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int]bool)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.NextSequence(ctx, "order", day)
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)

	other, err := store.NextSequence(ctx, "booking", day)
	require.NoError(t, err)
	assert.Equal(t, 1, other, "scopes are independent")
}

func TestDeleteExpiredCarts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	now := time.Now()

	old, err := store.CreateCart(ctx, repository.CreateCartParams{ID: uuid.New(), SessionID: "old", ExpiresAt: now.Add(-time.Hour), Now: now})
	require.NoError(t, err)
	fresh, err := store.CreateCart(ctx, repository.CreateCartParams{ID: uuid.New(), SessionID: "fresh", ExpiresAt: now.Add(time.Hour), Now: now})
	require.NoError(t, err)

	productID := uuid.New()
	_, err = store.UpsertCartItem(ctx, repository.UpsertCartItemParams{ID: uuid.New(), CartID: old.ID, Ref: domain.ItemRef{ProductID: &productID}, Quantity: 1, Now: now})
	require.NoError(t, err)

	n, err := store.DeleteExpiredCarts(ctx, now, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetCart(ctx, old.ID)
	assert.ErrorIs(t, err, repository.ErrNoRows)
	items, _ := store.ListCartItems(ctx, old.ID)
	assert.Empty(t, items)
	_, err = store.GetCart(ctx, fresh.ID)
	assert.NoError(t, err)

	// Idempotent.
	n, err = store.DeleteExpiredCarts(ctx, now, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}
