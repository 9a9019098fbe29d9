package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/motorworks/internal/cache"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/inventory"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/telemetry"
	"github.com/google/uuid"
)

// CartService provides business logic for shopping cart operations
type CartService interface {
	// GetOrCreate returns the owner's cart, creating it on first access.
	// An expired cart is discarded and replaced.
	GetOrCreate(ctx context.Context, owner CartOwner) (*CartSummary, error)

	// AddItem adds quantity of a product or service. Re-adding the same
	// reference increments the existing line.
	AddItem(ctx context.Context, cartID uuid.UUID, ref domain.ItemRef, quantity int) (*CartSummary, error)

	// UpdateItem sets a line's quantity. Zero removes the line.
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*CartSummary, error)

	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*CartSummary, error)
	Clear(ctx context.Context, cartID uuid.UUID) error

	// Merge folds the anonymous session cart into the user's cart at login.
	Merge(ctx context.Context, sessionID string, userID uuid.UUID) (*CartSummary, error)

	// ConvertToUser hands an anonymous cart to a user who has none.
	ConvertToUser(ctx context.Context, cartID, userID uuid.UUID) error

	Summary(ctx context.Context, cartID uuid.UUID) (*CartSummary, error)
}

// CartOwner identifies exactly one of a user or an anonymous session.
type CartOwner struct {
	UserID    *uuid.UUID
	SessionID string
}

func (o CartOwner) valid() bool {
	return (o.UserID != nil) != (o.SessionID != "")
}

// CartSummary aggregates cart information with items and calculated totals
type CartSummary struct {
	Cart          domain.Cart `json:"cart"`
	Items         []CartLine  `json:"items"`
	SubtotalCents int64       `json:"subtotal_cents"`
	ItemCount     int         `json:"item_count"`
}

// CartLine is a cart item priced against the current catalog.
type CartLine struct {
	ItemID         uuid.UUID  `json:"item_id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	ServiceID      *uuid.UUID `json:"service_id,omitempty"`
	Name           string     `json:"name"`
	SKU            string     `json:"sku,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	LineTotalCents int64      `json:"line_total_cents"`
	Available      bool       `json:"available"`
}

type cartService struct {
	store  repository.Store
	ledger *inventory.Ledger
	opts   Options
}

// NewCartService creates a new CartService instance
func NewCartService(store repository.Store, opts Options) CartService {
	return &cartService{
		store:  store,
		ledger: inventory.NewLedger(store),
		opts:   opts.withDefaults(),
	}
}

func (s *cartService) GetOrCreate(ctx context.Context, owner CartOwner) (*CartSummary, error) {
	const op = "cart.get_or_create"
	if !owner.valid() {
		return nil, ErrCartOwnerRequired.With(op, nil)
	}

	now := s.opts.Now()
	var cartID uuid.UUID
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		cart, err := lookupCart(ctx, q, owner)
		switch {
		case err == nil && !cart.ExpiresAt.Before(now):
			cartID = cart.ID
			return nil
		case err == nil:
			// Expired but not yet swept.
			if err := q.DeleteCart(ctx, cart.ID); err != nil {
				return domain.Internal(err, op, "failed to discard expired cart")
			}
		case !errors.Is(err, repository.ErrNoRows):
			return domain.Internal(err, op, "failed to load cart")
		}

		created, err := q.CreateCart(ctx, repository.CreateCartParams{
			ID:        uuid.New(),
			UserID:    owner.UserID,
			SessionID: owner.SessionID,
			ExpiresAt: now.Add(domain.CartTTL),
			Now:       now,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to create cart")
		}
		cartID = created.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Summary(ctx, cartID)
}

func lookupCart(ctx context.Context, q repository.Querier, owner CartOwner) (domain.Cart, error) {
	if owner.UserID != nil {
		return q.GetCartByUser(ctx, *owner.UserID)
	}
	return q.GetCartBySession(ctx, owner.SessionID)
}

func (s *cartService) AddItem(ctx context.Context, cartID uuid.UUID, ref domain.ItemRef, quantity int) (*CartSummary, error) {
	const op = "cart.add_item"
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity.With(op, nil)
	}
	if !ref.Valid() {
		return nil, ErrInvalidItemRef.With(op, nil)
	}

	now := s.opts.Now()
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		if _, err := q.GetCart(ctx, cartID); err != nil {
			return notFound(err, domain.ErrCartNotFound, op)
		}

		items, err := q.ListCartItems(ctx, cartID)
		if err != nil {
			return domain.Internal(err, op, "failed to load cart items")
		}
		total := quantity
		for _, it := range items {
			if it.Ref().SameRef(ref) {
				total += it.Quantity
			}
		}

		if err := s.checkSellable(ctx, q, op, ref, total); err != nil {
			return err
		}

		if _, err := q.UpsertCartItem(ctx, repository.UpsertCartItemParams{
			ID:       uuid.New(),
			CartID:   cartID,
			Ref:      ref,
			Quantity: quantity,
			Now:      now,
		}); err != nil {
			return domain.Internal(err, op, "failed to add cart item")
		}
		_, err = recalculate(ctx, q, cartID, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.afterMutation(ctx, cartID, "add")
}

// checkSellable verifies that qty of ref may sit in a cart right now.
func (s *cartService) checkSellable(ctx context.Context, q repository.Querier, op string, ref domain.ItemRef, qty int) error {
	if ref.ServiceID != nil {
		svc, err := q.GetService(ctx, *ref.ServiceID)
		if err != nil {
			return notFound(err, domain.ErrServiceNotFound, op)
		}
		if !svc.Active {
			return domain.ErrItemUnavailable.With(op, map[string]string{svc.ID.String(): "service is not active"})
		}
		return nil
	}

	p, err := q.GetProduct(ctx, *ref.ProductID)
	if err != nil {
		return notFound(err, domain.ErrProductNotFound, op)
	}
	if !p.Purchasable() {
		return domain.ErrItemUnavailable.With(op, map[string]string{p.ID.String(): "product is not available"})
	}
	ok, err := s.ledger.WithQuerier(q).CheckAvailable(ctx, p.ID, qty)
	if err != nil {
		return internal(err, op, "failed to check stock")
	}
	if !ok {
		return domain.ErrInsufficientStock.With(op, map[string]string{
			p.ID.String(): fmt.Sprintf("requested %d, available %d", qty, p.StockQuantity),
		})
	}
	return nil
}

func (s *cartService) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*CartSummary, error) {
	const op = "cart.update_item"
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity.With(op, nil)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, itemID)
	}

	now := s.opts.Now()
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		items, err := q.ListCartItems(ctx, cartID)
		if err != nil {
			return domain.Internal(err, op, "failed to load cart items")
		}
		var item *domain.CartItem
		for i := range items {
			if items[i].ID == itemID {
				item = &items[i]
			}
		}
		if item == nil {
			return domain.ErrCartItemNotFound.With(op, nil)
		}

		if err := s.checkSellable(ctx, q, op, item.Ref(), quantity); err != nil {
			return err
		}

		if _, err := q.SetCartItemQuantity(ctx, repository.SetCartItemQuantityParams{
			CartID:   cartID,
			ItemID:   itemID,
			Quantity: quantity,
			Now:      now,
		}); err != nil {
			return notFound(err, domain.ErrCartItemNotFound, op)
		}
		_, err = recalculate(ctx, q, cartID, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.afterMutation(ctx, cartID, "update")
}

func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*CartSummary, error) {
	const op = "cart.remove_item"
	now := s.opts.Now()
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		if err := q.DeleteCartItem(ctx, cartID, itemID); err != nil {
			return notFound(err, domain.ErrCartItemNotFound, op)
		}
		_, err := recalculate(ctx, q, cartID, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.afterMutation(ctx, cartID, "remove")
}

func (s *cartService) Clear(ctx context.Context, cartID uuid.UUID) error {
	const op = "cart.clear"
	now := s.opts.Now()
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		if _, err := q.GetCart(ctx, cartID); err != nil {
			return notFound(err, domain.ErrCartNotFound, op)
		}
		if err := q.DeleteCartItems(ctx, cartID); err != nil {
			return domain.Internal(err, op, "failed to clear cart")
		}
		if err := q.UpdateCartTotals(ctx, repository.UpdateCartTotalsParams{CartID: cartID, Now: now}); err != nil {
			return domain.Internal(err, op, "failed to update cart totals")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, cartID)
	s.count("clear")
	return nil
}

func (s *cartService) Merge(ctx context.Context, sessionID string, userID uuid.UUID) (*CartSummary, error) {
	const op = "cart.merge"
	if sessionID == "" || userID == uuid.Nil {
		return nil, ErrCartOwnerRequired.With(op, nil)
	}

	now := s.opts.Now()
	var merged, discarded uuid.UUID
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		anon, err := q.GetCartBySession(ctx, sessionID)
		if errors.Is(err, repository.ErrNoRows) {
			return nil
		}
		if err != nil {
			return domain.Internal(err, op, "failed to load session cart")
		}

		owned, err := q.GetCartByUser(ctx, userID)
		if errors.Is(err, repository.ErrNoRows) {
			if err := q.AssignCartToUser(ctx, anon.ID, userID); err != nil {
				return domain.Internal(err, op, "failed to assign cart")
			}
			merged = anon.ID
			return nil
		}
		if err != nil {
			return domain.Internal(err, op, "failed to load user cart")
		}

		items, err := q.ListCartItems(ctx, anon.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to load session cart items")
		}
		for _, it := range items {
			if _, err := q.UpsertCartItem(ctx, repository.UpsertCartItemParams{
				ID:       uuid.New(),
				CartID:   owned.ID,
				Ref:      it.Ref(),
				Quantity: it.Quantity,
				Now:      now,
			}); err != nil {
				return domain.Internal(err, op, "failed to merge cart item")
			}
		}
		if err := q.DeleteCart(ctx, anon.ID); err != nil {
			return domain.Internal(err, op, "failed to delete session cart")
		}
		merged, discarded = owned.ID, anon.ID
		_, err = recalculate(ctx, q, owned.ID, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if merged == uuid.Nil {
		return s.GetOrCreate(ctx, CartOwner{UserID: &userID})
	}
	if discarded != uuid.Nil {
		s.invalidate(ctx, discarded)
	}
	return s.afterMutation(ctx, merged, "merge")
}

func (s *cartService) ConvertToUser(ctx context.Context, cartID, userID uuid.UUID) error {
	const op = "cart.convert_to_user"
	if userID == uuid.Nil {
		return ErrCartOwnerRequired.With(op, nil)
	}

	err := s.store.AssignCartToUser(ctx, cartID, userID)
	switch {
	case errors.Is(err, repository.ErrNoRows):
		return domain.ErrCartNotFound.With(op, nil)
	case repository.IsUniqueViolation(err, repository.ConstraintCartUser):
		return domain.Conflict(op, "User already has a cart; merge instead")
	case err != nil:
		return domain.Internal(err, op, "failed to assign cart")
	}

	s.invalidate(ctx, cartID)
	s.count("convert")
	return nil
}

func (s *cartService) Summary(ctx context.Context, cartID uuid.UUID) (*CartSummary, error) {
	const op = "cart.summary"
	key := cache.CartKey(cartID.String())

	cached, err := cache.GetJSON[CartSummary](ctx, s.opts.Cache, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.opts.Logger.DebugContext(ctx, "cart cache read failed", "cart_id", cartID, "error", err)
	}

	cart, err := s.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, notFound(err, domain.ErrCartNotFound, op)
	}
	items, err := s.store.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}
	lines, err := priceLines(ctx, s.store, items)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to price cart items")
	}

	summary := &CartSummary{Cart: cart, Items: lines}
	for _, l := range lines {
		summary.ItemCount += l.Quantity
		if l.Available {
			summary.SubtotalCents += l.LineTotalCents
		}
	}

	if err := cache.SetJSON(ctx, s.opts.Cache, key, summary); err != nil {
		s.opts.Logger.DebugContext(ctx, "cart cache write failed", "cart_id", cartID, "error", err)
	}
	return summary, nil
}

func (s *cartService) afterMutation(ctx context.Context, cartID uuid.UUID, action string) (*CartSummary, error) {
	s.invalidate(ctx, cartID)
	s.count(action)
	return s.Summary(ctx, cartID)
}

func (s *cartService) invalidate(ctx context.Context, cartID uuid.UUID) {
	if err := s.opts.Cache.Delete(ctx, cache.CartKey(cartID.String())); err != nil {
		s.opts.Logger.WarnContext(ctx, "cart cache invalidation failed", "cart_id", cartID, "error", err)
	}
}

func (s *cartService) count(action string) {
	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues(action).Inc()
	}
}

// priceLines joins cart items with the current catalog. Items whose catalog
// entry vanished or stopped selling are kept but marked unavailable.
func priceLines(ctx context.Context, q repository.Querier, items []domain.CartItem) ([]CartLine, error) {
	lines := make([]CartLine, 0, len(items))
	for _, it := range items {
		line := CartLine{
			ItemID:    it.ID,
			ProductID: it.ProductID,
			ServiceID: it.ServiceID,
			Quantity:  it.Quantity,
		}

		switch {
		case it.ProductID != nil:
			p, err := q.GetProduct(ctx, *it.ProductID)
			if err != nil && !errors.Is(err, repository.ErrNoRows) {
				return nil, err
			}
			if err == nil {
				line.Name, line.SKU, line.UnitPriceCents = p.Name, p.SKU, p.PriceCents
				line.Available = p.Purchasable()
			}
		case it.ServiceID != nil:
			svc, err := q.GetService(ctx, *it.ServiceID)
			if err != nil && !errors.Is(err, repository.ErrNoRows) {
				return nil, err
			}
			if err == nil {
				line.Name, line.UnitPriceCents = svc.Name, svc.PriceCents
				line.Available = svc.Active
			}
		}

		line.LineTotalCents = line.UnitPriceCents * int64(line.Quantity)
		lines = append(lines, line)
	}
	return lines, nil
}

// recalculate refreshes the cached subtotal over every available line.
// A non-nil expiresAt also moves the cart's expiry.
func recalculate(ctx context.Context, q repository.Querier, cartID uuid.UUID, expiresAt *time.Time, now time.Time) (int64, error) {
	const op = "cart.recalculate"
	items, err := q.ListCartItems(ctx, cartID)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to load cart items")
	}
	lines, err := priceLines(ctx, q, items)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to price cart items")
	}

	var subtotal int64
	for _, l := range lines {
		if l.Available {
			subtotal += l.LineTotalCents
		}
	}

	if err := q.UpdateCartTotals(ctx, repository.UpdateCartTotalsParams{
		CartID:        cartID,
		SubtotalCents: subtotal,
		ExpiresAt:     expiresAt,
		Now:           now,
	}); err != nil {
		return 0, domain.Internal(err, op, "failed to update cart totals")
	}
	return subtotal, nil
}
