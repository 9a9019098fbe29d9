package repository

import (
	"context"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const insertBooking = `
INSERT INTO bookings (
    id, booking_number, user_id, service_id, scheduled_date, scheduled_hour, duration_hours,
    base_price_cents, add_ons_cents, total_cents, status, vehicle, notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

const insertBookingAddOn = `
INSERT INTO booking_add_ons (id, booking_id, add_on_id, name, price_cents)
VALUES ($1, $2, $3, $4, $5)
`

// InsertBooking writes the booking and its add-on snapshots. A competing
// live booking for the same slot surfaces as a UniqueViolationError on
// ConstraintBookingSlot.
func (q *Queries) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := q.db.Exec(ctx, insertBooking,
		b.ID, b.BookingNumber, b.UserID, b.ServiceID, domain.CivilDate(b.ScheduledDate), b.ScheduledHour,
		b.DurationHours, b.BasePriceCents, b.AddOnsCents, b.TotalCents, b.Status, b.Vehicle, b.Notes,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}

	batch := &pgx.Batch{}
	for _, a := range b.AddOns {
		batch.Queue(insertBookingAddOn, a.ID, b.ID, a.AddOnID, a.Name, a.PriceCents)
	}
	if batch.Len() == 0 {
		return nil
	}
	return translate(q.sendBatch(ctx, batch))
}

const bookingColumns = `
id, booking_number, user_id, service_id, scheduled_date, scheduled_hour, duration_hours,
base_price_cents, add_ons_cents, total_cents, status, vehicle, notes, cancellation_reason,
created_at, updated_at, confirmed_at, completed_at, cancelled_at
`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.UserID, &b.ServiceID, &b.ScheduledDate, &b.ScheduledHour, &b.DurationHours,
		&b.BasePriceCents, &b.AddOnsCents, &b.TotalCents, &b.Status, &b.Vehicle, &b.Notes, &b.CancellationReason,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CompletedAt, &b.CancelledAt,
	)
	return b, translate(err)
}

func (q *Queries) collectBookings(rows pgx.Rows, err error) ([]domain.Booking, error) {
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (q *Queries) listBookingAddOns(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingAddOn, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, booking_id, add_on_id, name, price_cents
FROM booking_add_ons WHERE booking_id = $1 ORDER BY name, id`, bookingID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var addOns []domain.BookingAddOn
	for rows.Next() {
		var a domain.BookingAddOn
		if err := rows.Scan(&a.ID, &a.BookingID, &a.AddOnID, &a.Name, &a.PriceCents); err != nil {
			return nil, err
		}
		addOns = append(addOns, a)
	}
	return addOns, rows.Err()
}

func (q *Queries) getBookingWhere(ctx context.Context, where string, arg any) (domain.Booking, error) {
	b, err := scanBooking(q.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where, arg))
	if err != nil {
		return b, err
	}
	b.AddOns, err = q.listBookingAddOns(ctx, b.ID)
	return b, err
}

func (q *Queries) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return q.getBookingWhere(ctx, "id = $1", id)
}

func (q *Queries) GetBookingByNumber(ctx context.Context, number string) (domain.Booking, error) {
	return q.getBookingWhere(ctx, "booking_number = $1", number)
}

func (q *Queries) ListBookingsByUser(ctx context.Context, userID uuid.UUID, page Page) ([]domain.Booking, error) {
	page = page.Normalize()
	return q.collectBookings(q.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
WHERE user_id = $1 ORDER BY scheduled_date DESC, scheduled_hour DESC LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset))
}

func (q *Queries) ListActiveBookings(ctx context.Context, arg DateRangeParams) ([]domain.Booking, error) {
	return q.collectBookings(q.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
WHERE service_id = $1 AND scheduled_date BETWEEN $2 AND $3 AND status <> 'CANCELLED'
ORDER BY scheduled_date, scheduled_hour`, arg.ServiceID, domain.CivilDate(arg.From), domain.CivilDate(arg.To)))
}

const updateBookingStatus = `
UPDATE bookings SET
    status = $3,
    confirmed_at = COALESCE($4, confirmed_at),
    completed_at = COALESCE($5, completed_at),
    cancelled_at = COALESCE($6, cancelled_at),
    cancellation_reason = CASE WHEN $7 = '' THEN cancellation_reason ELSE $7 END,
    updated_at = $8
WHERE id = $1 AND status = $2
`

func (q *Queries) UpdateBookingStatus(ctx context.Context, arg UpdateBookingStatusParams) (bool, error) {
	tag, err := q.db.Exec(ctx, updateBookingStatus,
		arg.ID, arg.From, arg.To, arg.ConfirmedAt, arg.CompletedAt, arg.CancelledAt,
		arg.CancellationReason, arg.Now,
	)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) InsertSlotBlock(ctx context.Context, b domain.SlotBlock) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO slot_blocks (id, service_id, day, hour, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, b.ID, b.ServiceID, domain.CivilDate(b.Date), b.Hour, b.Reason, b.CreatedAt)
	return translate(err)
}

func (q *Queries) DeleteSlotBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM slot_blocks WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (q *Queries) ListSlotBlocks(ctx context.Context, arg DateRangeParams) ([]domain.SlotBlock, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, service_id, day, hour, reason, created_at
FROM slot_blocks
WHERE service_id = $1 AND day BETWEEN $2 AND $3
ORDER BY day, hour NULLS FIRST`, arg.ServiceID, domain.CivilDate(arg.From), domain.CivilDate(arg.To))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var blocks []domain.SlotBlock
	for rows.Next() {
		var b domain.SlotBlock
		if err := rows.Scan(&b.ID, &b.ServiceID, &b.Date, &b.Hour, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
