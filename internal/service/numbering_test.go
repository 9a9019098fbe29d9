package service

import (
	"testing"
	"time"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "ORD-20260302-0001", FormatNumber(orderNumberPrefix, day, 1))
	assert.Equal(t, "BKG-20260302-0042", FormatNumber(bookingNumberPrefix, day, 42))
	assert.Equal(t, "ORD-20260302-12345", FormatNumber(orderNumberPrefix, day, 12345), "sequence widens past four digits")
}

func TestValidateParams(t *testing.T) {
	err := validateParams("test.op", CreateBookingParams{Hour: 30, Notes: string(make([]byte, 2001))})
	require.ErrorIs(t, err, ErrValidation)

	details := domain.ErrorDetails(err)
	assert.Equal(t, "is required", details["user_id"])
	assert.Equal(t, "is required", details["service_id"])
	assert.Equal(t, "is required", details["date"])
	assert.Equal(t, "must be at most 23", details["hour"])
	assert.Equal(t, "must be at most 2000", details["notes"])
	assert.Equal(t, "test.op", domain.ErrorOp(err))

	ok := CreateBookingParams{UserID: uuid.New(), ServiceID: uuid.New(), Date: time.Now(), Hour: 9}
	assert.NoError(t, validateParams("test.op", ok))
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"UserID":         "user_id",
		"ShippingMethod": "shipping_method",
		"Notes":          "notes",
		"AmountCents":    "amount_cents",
	}
	for in, want := range tests {
		assert.Equal(t, want, toSnake(in), in)
	}
}
