package repository

import (
	"context"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
)

const getProduct = `
SELECT id, sku, name, price_cents, category, status, track_inventory, stock_quantity, updated_at
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	var p domain.Product
	err := q.db.QueryRow(ctx, getProduct, id).Scan(
		&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Category, &p.Status,
		&p.TrackInventory, &p.StockQuantity, &p.UpdatedAt,
	)
	return p, translate(err)
}

// Conditional decrement: affects no row when stock is short.
const decrementStock = `
UPDATE products
SET stock_quantity = stock_quantity - $2, updated_at = now()
WHERE id = $1 AND stock_quantity >= $2
`

func (q *Queries) DecrementStock(ctx context.Context, arg StockParams) (bool, error) {
	tag, err := q.db.Exec(ctx, decrementStock, arg.ProductID, arg.Quantity)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

const incrementStock = `
UPDATE products
SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE id = $1
`

func (q *Queries) IncrementStock(ctx context.Context, arg StockParams) error {
	tag, err := q.db.Exec(ctx, incrementStock, arg.ProductID, arg.Quantity)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

const getService = `
SELECT id, name, price_cents, duration_hours, open_weekdays, hour_ranges,
       max_bookings_per_day, min_advance_days, max_advance_days, active
FROM services
WHERE id = $1
`

func (q *Queries) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	var (
		s        domain.Service
		weekdays []int16
	)
	err := q.db.QueryRow(ctx, getService, id).Scan(
		&s.ID, &s.Name, &s.PriceCents, &s.DurationHours, &weekdays, &s.Schedule.HourRanges,
		&s.Schedule.MaxBookingsPerDay, &s.MinAdvanceDays, &s.MaxAdvanceDays, &s.Active,
	)
	if err != nil {
		return s, translate(err)
	}
	s.Schedule.OpenWeekdays = make([]time.Weekday, 0, len(weekdays))
	for _, d := range weekdays {
		s.Schedule.OpenWeekdays = append(s.Schedule.OpenWeekdays, time.Weekday(d))
	}
	return s, nil
}

const listServiceAddOns = `
SELECT id, service_id, name, price_cents
FROM service_add_ons
WHERE service_id = $1
ORDER BY name
`

func (q *Queries) ListServiceAddOns(ctx context.Context, serviceID uuid.UUID) ([]domain.ServiceAddOn, error) {
	rows, err := q.db.Query(ctx, listServiceAddOns, serviceID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var items []domain.ServiceAddOn
	for rows.Next() {
		var a domain.ServiceAddOn
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.Name, &a.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const getAddress = `
SELECT full_name, company, address_line1, address_line2, city, state, postal_code, country, phone
FROM addresses
WHERE id = $1 AND user_id = $2
`

func (q *Queries) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (address.Address, error) {
	var a address.Address
	err := q.db.QueryRow(ctx, getAddress, addressID, userID).Scan(
		&a.FullName, &a.Company, &a.AddressLine1, &a.AddressLine2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone,
	)
	return a, translate(err)
}
