package repository

import (
	"context"
	"time"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cartColumns = `id, user_id, session_id, subtotal_cents, expires_at, created_at, updated_at`

func scanCart(row pgx.Row) (domain.Cart, error) {
	var (
		c       domain.Cart
		session *string
	)
	err := row.Scan(&c.ID, &c.UserID, &session, &c.SubtotalCents, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if session != nil {
		c.SessionID = *session
	}
	return c, translate(err)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const createCart = `
INSERT INTO carts (id, user_id, session_id, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING ` + cartColumns

func (q *Queries) CreateCart(ctx context.Context, arg CreateCartParams) (domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, createCart, arg.ID, arg.UserID, nullString(arg.SessionID), arg.ExpiresAt, arg.Now))
}

func (q *Queries) GetCart(ctx context.Context, id uuid.UUID) (domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
}

// GetCartForUpdate locks the cart row for the rest of the transaction so the
// expiry sweep skips it.
func (q *Queries) GetCartForUpdate(ctx context.Context, id uuid.UUID) (domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetCartByUser(ctx context.Context, userID uuid.UUID) (domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID))
}

func (q *Queries) GetCartBySession(ctx context.Context, sessionID string) (domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE session_id = $1`, sessionID))
}

const assignCartToUser = `
UPDATE carts SET user_id = $2, session_id = NULL, updated_at = now()
WHERE id = $1
`

func (q *Queries) AssignCartToUser(ctx context.Context, cartID, userID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, assignCartToUser, cartID, userID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

const updateCartTotals = `
UPDATE carts
SET subtotal_cents = $2, expires_at = COALESCE($3, expires_at), updated_at = $4
WHERE id = $1
`

func (q *Queries) UpdateCartTotals(ctx context.Context, arg UpdateCartTotalsParams) error {
	_, err := q.db.Exec(ctx, updateCartTotals, arg.CartID, arg.SubtotalCents, arg.ExpiresAt, arg.Now)
	return translate(err)
}

func (q *Queries) DeleteCart(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return translate(err)
}

const cartItemColumns = `id, cart_id, product_id, service_id, quantity, created_at, updated_at`

func scanCartItem(row pgx.Row) (domain.CartItem, error) {
	var i domain.CartItem
	err := row.Scan(&i.ID, &i.CartID, &i.ProductID, &i.ServiceID, &i.Quantity, &i.CreatedAt, &i.UpdatedAt)
	return i, translate(err)
}

func (q *Queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Re-adding the same product or service increments the existing line.
const upsertCartProduct = `
INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (cart_id, product_id) WHERE product_id IS NOT NULL
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
RETURNING ` + cartItemColumns

const upsertCartService = `
INSERT INTO cart_items (id, cart_id, service_id, quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (cart_id, service_id) WHERE service_id IS NOT NULL
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
RETURNING ` + cartItemColumns

func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (domain.CartItem, error) {
	if arg.Ref.ProductID != nil {
		return scanCartItem(q.db.QueryRow(ctx, upsertCartProduct, arg.ID, arg.CartID, *arg.Ref.ProductID, arg.Quantity, arg.Now))
	}
	return scanCartItem(q.db.QueryRow(ctx, upsertCartService, arg.ID, arg.CartID, *arg.Ref.ServiceID, arg.Quantity, arg.Now))
}

const setCartItemQuantity = `
UPDATE cart_items SET quantity = $3, updated_at = $4
WHERE cart_id = $1 AND id = $2
RETURNING ` + cartItemColumns

func (q *Queries) SetCartItemQuantity(ctx context.Context, arg SetCartItemQuantityParams) (domain.CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, setCartItemQuantity, arg.CartID, arg.ItemID, arg.Quantity, arg.Now))
}

func (q *Queries) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (q *Queries) DeleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return translate(err)
}

// Carts locked by an in-flight conversion are skipped, never waited on.
const deleteExpiredCarts = `
WITH expired AS (
    SELECT id FROM carts
    WHERE expires_at < $1
    ORDER BY expires_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
), items AS (
    DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM expired)
)
DELETE FROM carts WHERE id IN (SELECT id FROM expired)
`

func (q *Queries) DeleteExpiredCarts(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := q.db.Exec(ctx, deleteExpiredCarts, now, limit)
	if err != nil {
		return 0, translate(err)
	}
	return int(tag.RowsAffected()), nil
}

const nextSequence = `
INSERT INTO number_sequences (scope, day, value)
VALUES ($1, $2, 1)
ON CONFLICT (scope, day) DO UPDATE SET value = number_sequences.value + 1
RETURNING value
`

// NextSequence atomically allocates the next value of a per-day counter.
func (q *Queries) NextSequence(ctx context.Context, scope string, day time.Time) (int, error) {
	var v int
	err := q.db.QueryRow(ctx, nextSequence, scope, domain.CivilDate(day)).Scan(&v)
	return v, translate(err)
}
