package repository

import (
	"context"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const insertOrder = `
INSERT INTO orders (
    id, order_number, user_id, status, subtotal_cents, tax_cents, shipping_cents,
    discount_cents, total_cents, shipping_address, billing_address, shipping_method,
    tracking_number, notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

const insertOrderItem = `
INSERT INTO order_items (
    id, order_id, product_id, product_name, sku, unit_price_cents, quantity, line_total_cents
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertOrder writes the order and its item snapshots.
func (q *Queries) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := q.db.Exec(ctx, insertOrder,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.SubtotalCents, o.TaxCents, o.ShippingCents,
		o.DiscountCents, o.TotalCents, o.ShippingAddress, o.BillingAddress, o.ShippingMethod,
		o.TrackingNumber, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(insertOrderItem,
			it.ID, o.ID, it.ProductID, it.ProductName, it.SKU, it.UnitPriceCents, it.Quantity, it.LineTotalCents,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	return translate(q.sendBatch(ctx, batch))
}

const orderColumns = `
id, order_number, user_id, status, subtotal_cents, tax_cents, shipping_cents,
discount_cents, total_cents, shipping_address, billing_address, shipping_method,
tracking_number, notes, cancel_reason, created_at, updated_at, shipped_at, delivered_at, cancelled_at
`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents,
		&o.DiscountCents, &o.TotalCents, &o.ShippingAddress, &o.BillingAddress, &o.ShippingMethod,
		&o.TrackingNumber, &o.Notes, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt,
		&o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	return o, translate(err)
}

func (q *Queries) listOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, order_id, product_id, product_name, sku, unit_price_cents, quantity, line_total_cents
FROM order_items WHERE order_id = $1 ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.SKU,
			&it.UnitPriceCents, &it.Quantity, &it.LineTotalCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) getOrderWhere(ctx context.Context, where string, arg any) (domain.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		return o, err
	}
	o.Items, err = q.listOrderItems(ctx, o.ID)
	return o, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return q.getOrderWhere(ctx, "id = $1", id)
}

func (q *Queries) GetOrderByNumber(ctx context.Context, number string) (domain.Order, error) {
	return q.getOrderWhere(ctx, "order_number = $1", number)
}

// List queries return headers only; callers fetch items through GetOrder.
func (q *Queries) collectOrders(rows pgx.Rows, err error) ([]domain.Order, error) {
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page Page) ([]domain.Order, error) {
	page = page.Normalize()
	return q.collectOrders(q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset))
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]domain.Order, error) {
	page := arg.Page.Normalize()
	var status *string
	if arg.Status != nil {
		s := string(*arg.Status)
		status = &s
	}
	return q.collectOrders(q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE ($1::text IS NULL OR status = $1) ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, status, page.Limit, page.Offset))
}

// Compare-and-set on status; timestamps are only written when provided.
const updateOrderStatus = `
UPDATE orders SET
    status = $3,
    tracking_number = COALESCE($4, tracking_number),
    cancel_reason = CASE WHEN $5 = '' THEN cancel_reason ELSE $5 END,
    shipped_at = COALESCE($6, shipped_at),
    delivered_at = COALESCE($7, delivered_at),
    cancelled_at = COALESCE($8, cancelled_at),
    updated_at = $9
WHERE id = $1 AND status = $2
`

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (bool, error) {
	tag, err := q.db.Exec(ctx, updateOrderStatus,
		arg.ID, arg.From, arg.To, arg.TrackingNumber, arg.CancelReason,
		arg.ShippedAt, arg.DeliveredAt, arg.CancelledAt, arg.Now,
	)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	b, ok := q.db.(interface {
		SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		for _, qq := range batch.QueuedQueries {
			if _, err := q.db.Exec(ctx, qq.SQL, qq.Arguments...); err != nil {
				return err
			}
		}
		return nil
	}
	return b.SendBatch(ctx, batch).Close()
}
