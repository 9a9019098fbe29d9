package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/google/uuid"
)

// querier implements repository.Querier over a state. mu is nil for the
// transaction-bound querier handed to InTx callbacks, which already hold it.
type querier struct {
	st *state
	mu *sync.Mutex
}

var _ repository.Querier = (*querier)(nil)

func (q *querier) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

func unique(constraint string) error {
	return &repository.UniqueViolationError{Constraint: constraint}
}

func get[K comparable, V any](m map[K]V, k K) (V, error) {
	v, ok := m[k]
	if !ok {
		return v, repository.ErrNoRows
	}
	return v, nil
}

func window[T any](items []T, page repository.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return nil
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end]
}

func inRange(day, from, to time.Time) bool {
	day = domain.CivilDate(day)
	return !day.Before(domain.CivilDate(from)) && !day.After(domain.CivilDate(to))
}

// =============================================================================
// Catalog
// =============================================================================

func (q *querier) GetProduct(_ context.Context, id uuid.UUID) (domain.Product, error) {
	defer q.lock()()
	return get(q.st.products, id)
}

func (q *querier) DecrementStock(_ context.Context, arg repository.StockParams) (bool, error) {
	defer q.lock()()
	p, ok := q.st.products[arg.ProductID]
	if !ok || p.StockQuantity < arg.Quantity {
		return false, nil
	}
	p.StockQuantity -= arg.Quantity
	q.st.products[p.ID] = p
	return true, nil
}

func (q *querier) IncrementStock(_ context.Context, arg repository.StockParams) error {
	defer q.lock()()
	p, ok := q.st.products[arg.ProductID]
	if !ok {
		return repository.ErrNoRows
	}
	p.StockQuantity += arg.Quantity
	q.st.products[p.ID] = p
	return nil
}

func (q *querier) GetService(_ context.Context, id uuid.UUID) (domain.Service, error) {
	defer q.lock()()
	return get(q.st.services, id)
}

func (q *querier) ListServiceAddOns(_ context.Context, serviceID uuid.UUID) ([]domain.ServiceAddOn, error) {
	defer q.lock()()
	var out []domain.ServiceAddOn
	for _, a := range q.st.addOns {
		if a.ServiceID == serviceID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.ServiceAddOn) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (q *querier) GetAddress(_ context.Context, userID, addressID uuid.UUID) (address.Address, error) {
	defer q.lock()()
	rec, ok := q.st.addresses[addressID]
	if !ok || rec.userID != userID {
		return address.Address{}, repository.ErrNoRows
	}
	return rec.addr, nil
}

// =============================================================================
// Carts
// =============================================================================

func (q *querier) CreateCart(_ context.Context, arg repository.CreateCartParams) (domain.Cart, error) {
	defer q.lock()()
	for _, c := range q.st.carts {
		if arg.UserID != nil && c.UserID != nil && *c.UserID == *arg.UserID {
			return domain.Cart{}, unique(repository.ConstraintCartUser)
		}
		if arg.SessionID != "" && c.SessionID == arg.SessionID {
			return domain.Cart{}, unique(repository.ConstraintCartSession)
		}
	}
	c := domain.Cart{
		ID:        arg.ID,
		UserID:    arg.UserID,
		SessionID: arg.SessionID,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: arg.Now,
		UpdatedAt: arg.Now,
	}
	q.st.carts[c.ID] = c
	return c, nil
}

func (q *querier) GetCart(_ context.Context, id uuid.UUID) (domain.Cart, error) {
	defer q.lock()()
	return get(q.st.carts, id)
}

// GetCartForUpdate needs no lock of its own: transactions are serialized.
func (q *querier) GetCartForUpdate(ctx context.Context, id uuid.UUID) (domain.Cart, error) {
	return q.GetCart(ctx, id)
}

func (q *querier) GetCartByUser(_ context.Context, userID uuid.UUID) (domain.Cart, error) {
	defer q.lock()()
	for _, c := range q.st.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return domain.Cart{}, repository.ErrNoRows
}

func (q *querier) GetCartBySession(_ context.Context, sessionID string) (domain.Cart, error) {
	defer q.lock()()
	for _, c := range q.st.carts {
		if c.SessionID == sessionID {
			return c, nil
		}
	}
	return domain.Cart{}, repository.ErrNoRows
}

func (q *querier) AssignCartToUser(_ context.Context, cartID, userID uuid.UUID) error {
	defer q.lock()()
	c, ok := q.st.carts[cartID]
	if !ok {
		return repository.ErrNoRows
	}
	for _, other := range q.st.carts {
		if other.ID != cartID && other.UserID != nil && *other.UserID == userID {
			return unique(repository.ConstraintCartUser)
		}
	}
	c.UserID = &userID
	c.SessionID = ""
	c.UpdatedAt = time.Now()
	q.st.carts[cartID] = c
	return nil
}

func (q *querier) UpdateCartTotals(_ context.Context, arg repository.UpdateCartTotalsParams) error {
	defer q.lock()()
	c, ok := q.st.carts[arg.CartID]
	if !ok {
		return nil
	}
	c.SubtotalCents = arg.SubtotalCents
	if arg.ExpiresAt != nil {
		c.ExpiresAt = *arg.ExpiresAt
	}
	c.UpdatedAt = arg.Now
	q.st.carts[c.ID] = c
	return nil
}

func (q *querier) DeleteCart(_ context.Context, id uuid.UUID) error {
	defer q.lock()()
	q.deleteCart(id)
	return nil
}

func (q *querier) deleteCart(id uuid.UUID) {
	for itemID, it := range q.st.cartItems {
		if it.CartID == id {
			delete(q.st.cartItems, itemID)
		}
	}
	delete(q.st.carts, id)
}

func (q *querier) ListCartItems(_ context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	defer q.lock()()
	var out []domain.CartItem
	for _, it := range q.st.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b domain.CartItem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (q *querier) UpsertCartItem(_ context.Context, arg repository.UpsertCartItemParams) (domain.CartItem, error) {
	defer q.lock()()
	if _, ok := q.st.carts[arg.CartID]; !ok {
		return domain.CartItem{}, repository.ErrNoRows
	}
	for _, it := range q.st.cartItems {
		if it.CartID == arg.CartID && it.Ref().SameRef(arg.Ref) {
			it.Quantity += arg.Quantity
			it.UpdatedAt = arg.Now
			q.st.cartItems[it.ID] = it
			return it, nil
		}
	}
	it := domain.CartItem{
		ID:        arg.ID,
		CartID:    arg.CartID,
		ProductID: arg.Ref.ProductID,
		ServiceID: arg.Ref.ServiceID,
		Quantity:  arg.Quantity,
		CreatedAt: arg.Now,
		UpdatedAt: arg.Now,
	}
	q.st.cartItems[it.ID] = it
	return it, nil
}

func (q *querier) SetCartItemQuantity(_ context.Context, arg repository.SetCartItemQuantityParams) (domain.CartItem, error) {
	defer q.lock()()
	it, ok := q.st.cartItems[arg.ItemID]
	if !ok || it.CartID != arg.CartID {
		return domain.CartItem{}, repository.ErrNoRows
	}
	it.Quantity = arg.Quantity
	it.UpdatedAt = arg.Now
	q.st.cartItems[it.ID] = it
	return it, nil
}

func (q *querier) DeleteCartItem(_ context.Context, cartID, itemID uuid.UUID) error {
	defer q.lock()()
	it, ok := q.st.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return repository.ErrNoRows
	}
	delete(q.st.cartItems, itemID)
	return nil
}

func (q *querier) DeleteCartItems(_ context.Context, cartID uuid.UUID) error {
	defer q.lock()()
	maps.DeleteFunc(q.st.cartItems, func(_ uuid.UUID, it domain.CartItem) bool {
		return it.CartID == cartID
	})
	return nil
}

func (q *querier) DeleteExpiredCarts(_ context.Context, now time.Time, limit int) (int, error) {
	defer q.lock()()
	var expired []domain.Cart
	for _, c := range q.st.carts {
		if c.ExpiresAt.Before(now) {
			expired = append(expired, c)
		}
	}
	slices.SortFunc(expired, func(a, b domain.Cart) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, c := range expired {
		q.deleteCart(c.ID)
	}
	return len(expired), nil
}

func (q *querier) NextSequence(_ context.Context, scope string, day time.Time) (int, error) {
	defer q.lock()()
	k := seqKey{scope: scope, day: domain.CivilDate(day)}
	q.st.sequences[k]++
	return q.st.sequences[k], nil
}
