package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	fkErr := &pgconn.PgError{Code: "23503", ConstraintName: "order_items_order_id_fkey"}
	plain := errors.New("connection reset")

	tests := []struct {
		name       string
		err        error
		want       error
		constraint string
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: pgx.ErrNoRows, want: ErrNoRows},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: ErrNoRows},
		{
			name:       "unique violation",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: ConstraintBookingSlot},
			constraint: ConstraintBookingSlot,
		},
		{
			name:       "wrapped unique violation",
			err:        fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: ConstraintOrderNumber}),
			constraint: ConstraintOrderNumber,
		},
		{name: "other pg error", err: fkErr, want: fkErr},
		{name: "plain error", err: plain, want: plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			if tt.constraint == "" {
				assert.Equal(t, tt.want, got)
				return
			}
			var uv *UniqueViolationError
			require.ErrorAs(t, got, &uv)
			assert.Equal(t, tt.constraint, uv.Constraint)
			assert.ErrorIs(t, got, tt.err, "the driver error stays reachable")
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	slot := &UniqueViolationError{Constraint: ConstraintBookingSlot}

	tests := []struct {
		name        string
		err         error
		constraints []string
		want        bool
	}{
		{name: "any constraint", err: slot, want: true},
		{name: "matching constraint", err: slot, constraints: []string{ConstraintBookingSlot}, want: true},
		{
			name:        "one of several",
			err:         slot,
			constraints: []string{ConstraintBookingNumber, ConstraintBookingSlot},
			want:        true,
		},
		{name: "other constraint", err: slot, constraints: []string{ConstraintBookingNumber}, want: false},
		{name: "wrapped", err: fmt.Errorf("create booking: %w", slot), constraints: []string{ConstraintBookingSlot}, want: true},
		{name: "raw pg error", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraints...))
		})
	}
}
