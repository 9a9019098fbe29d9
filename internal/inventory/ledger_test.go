package inventory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/inventory"
	"github.com/dukerupert/motorworks/internal/memstore"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, stock int, tracked bool) (*memstore.Store, uuid.UUID) {
	t.Helper()
	store := memstore.New()
	id := uuid.New()
	store.PutProduct(domain.Product{
		ID: id, SKU: "BRK-001", Name: "Brake pads", PriceCents: 4999,
		Status: domain.ProductStatusActive, TrackInventory: tracked, StockQuantity: stock,
	})
	return store, id
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	store, id := seed(t, 5, true)
	ledger := inventory.NewLedger(store)

	require.NoError(t, ledger.Reserve(ctx, id, 3))
	ok, err := ledger.CheckAvailable(ctx, id, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	err = ledger.Reserve(ctx, id, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, ledger.Release(ctx, id, 3))
	p, _ := store.GetProduct(ctx, id)
	assert.Equal(t, 5, p.StockQuantity)
}

func TestLedger_UntrackedAlwaysAvailable(t *testing.T) {
	ctx := context.Background()
	store, id := seed(t, 0, false)
	ledger := inventory.NewLedger(store)

	ok, err := ledger.CheckAvailable(ctx, id, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, ledger.Reserve(ctx, id, 1000))
	require.NoError(t, ledger.Release(ctx, id, 1000))

	p, _ := store.GetProduct(ctx, id)
	assert.Zero(t, p.StockQuantity, "untracked stock is never touched")
}

func TestLedger_InvalidQuantityAndUnknownProduct(t *testing.T) {
	ctx := context.Background()
	store, id := seed(t, 5, true)
	ledger := inventory.NewLedger(store)

	assert.ErrorIs(t, ledger.Reserve(ctx, id, 0), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, ledger.Reserve(ctx, uuid.New(), 1), domain.ErrProductNotFound)
}

func TestLedger_ConcurrentReservationsForLastUnits(t *testing.T) {
	ctx := context.Background()
	store, id := seed(t, 1, true)
	ledger := inventory.NewLedger(store)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ledger.Reserve(ctx, id, 1) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	p, _ := store.GetProduct(ctx, id)
	assert.Zero(t, p.StockQuantity)
}

func TestLedger_BoundToTransaction(t *testing.T) {
	ctx := context.Background()
	store, id := seed(t, 2, true)
	ledger := inventory.NewLedger(store)

	_ = store.InTx(ctx, func(q repository.Querier) error {
		require.NoError(t, ledger.WithQuerier(q).Reserve(ctx, id, 2))
		return assert.AnError
	})

	p, _ := store.GetProduct(ctx, id)
	assert.Equal(t, 2, p.StockQuantity)
}
