// Package inventory tracks per-product available quantity.
//
// A Ledger is bound to a repository.Querier. Workflows bind it to their
// transaction with WithQuerier so reservations commit or roll back together
// with the rest of the unit of work.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/google/uuid"
)

// Ledger checks, reserves and releases product stock.
type Ledger struct {
	q repository.Querier
}

func NewLedger(q repository.Querier) *Ledger {
	return &Ledger{q: q}
}

// WithQuerier returns a ledger bound to q, typically a transaction.
func (l *Ledger) WithQuerier(q repository.Querier) *Ledger {
	return &Ledger{q: q}
}

func (l *Ledger) product(ctx context.Context, op string, id uuid.UUID) (domain.Product, error) {
	p, err := l.q.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrNoRows) {
		return p, domain.ErrProductNotFound.With(op, map[string]string{"product_id": id.String()})
	}
	if err != nil {
		return p, domain.Internal(err, op, "failed to load product")
	}
	return p, nil
}

// CheckAvailable reports whether qty units can currently be reserved.
// Products that do not track inventory are always available.
func (l *Ledger) CheckAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	const op = "inventory.check"
	if qty < 1 {
		return false, domain.ErrInvalidQuantity.With(op, nil)
	}
	p, err := l.product(ctx, op, productID)
	if err != nil {
		return false, err
	}
	return !p.TrackInventory || p.StockQuantity >= qty, nil
}

// Reserve decrements stock by qty, failing with ErrInsufficientStock when
// fewer units remain. The decrement is conditional in the store, so two
// concurrent reservations for the last units cannot both succeed.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	const op = "inventory.reserve"
	if qty < 1 {
		return domain.ErrInvalidQuantity.With(op, nil)
	}
	p, err := l.product(ctx, op, productID)
	if err != nil {
		return err
	}
	if !p.TrackInventory {
		return nil
	}

	ok, err := l.q.DecrementStock(ctx, repository.StockParams{ProductID: productID, Quantity: qty})
	if err != nil {
		return domain.Internal(err, op, "failed to reserve stock")
	}
	if !ok {
		return domain.ErrInsufficientStock.With(op, map[string]string{
			productID.String(): fmt.Sprintf("requested %d", qty),
		})
	}
	return nil
}

// Release returns qty units to stock. Callers release each reservation
// exactly once.
func (l *Ledger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	const op = "inventory.release"
	if qty < 1 {
		return domain.ErrInvalidQuantity.With(op, nil)
	}
	p, err := l.product(ctx, op, productID)
	if err != nil {
		return err
	}
	if !p.TrackInventory {
		return nil
	}
	if err := l.q.IncrementStock(ctx, repository.StockParams{ProductID: productID, Quantity: qty}); err != nil {
		return domain.Internal(err, op, "failed to release stock")
	}
	return nil
}
