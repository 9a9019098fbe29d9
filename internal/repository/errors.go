package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoRows is returned when a lookup matches nothing.
var ErrNoRows = errors.New("repository: no rows in result set")

// Constraint names shared by the schema and the in-memory store.
const (
	ConstraintOrderNumber       = "orders_order_number_key"
	ConstraintBookingNumber     = "bookings_booking_number_key"
	ConstraintBookingSlot       = "bookings_active_slot_idx"
	ConstraintPaymentOrder      = "payments_order_id_key"
	ConstraintPaymentBooking    = "payments_booking_id_key"
	ConstraintPaymentProviderTx = "payments_provider_tx_idx"
	ConstraintCartUser          = "carts_user_id_key"
	ConstraintCartSession       = "carts_session_id_key"
)

// UniqueViolationError reports a write rejected by a uniqueness constraint.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Constraint)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// IsUniqueViolation reports whether err is a unique violation, optionally
// restricted to the given constraints.
func IsUniqueViolation(err error, constraints ...string) bool {
	var uv *UniqueViolationError
	if !errors.As(err, &uv) {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if uv.Constraint == c {
			return true
		}
	}
	return false
}

// translate maps driver errors onto the package's error vocabulary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &UniqueViolationError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
