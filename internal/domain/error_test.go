package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	dbErr := errors.New("connection reset")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message", &Error{Code: EINVALID, Message: "bad hour"}, "bad hour"},
		{"op", &Error{Code: EINVALID, Op: "booking.create", Message: "bad hour"}, "booking.create: bad hour"},
		{"wrapped", &Error{Code: EINTERNAL, Op: "order.create", Message: "failed to save", Err: dbErr}, "order.create: failed to save: connection reset"},
		{"wrapped without op", &Error{Code: EINTERNAL, Message: "failed to save", Err: dbErr}, "failed to save: connection reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Internal(cause, "payment.settle", "failed to update payment")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("settle: %w", err), cause)
}

func TestAccessors(t *testing.T) {
	scoped := ErrInsufficientStock.With("order.create", map[string]string{"sku-1": "requested 3, available 1"})
	foreign := errors.New("pgx: closed pool")

	tests := []struct {
		name    string
		err     error
		code    string
		reason  string
		message string
		op      string
	}{
		{"nil", nil, "", "", "", ""},
		{"scoped sentinel", scoped, ECONFLICT, ReasonInsufficientStock, ErrInsufficientStock.Message, "order.create"},
		{"wrapped", fmt.Errorf("checkout: %w", scoped), ECONFLICT, ReasonInsufficientStock, ErrInsufficientStock.Message, "order.create"},
		{"internal hides message", Internal(foreign, "cart.get", "lookup failed"), EINTERNAL, "", internalMessage, "cart.get"},
		{"foreign", foreign, EINTERNAL, "", internalMessage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.reason, ErrorReason(tt.err))
			assert.Equal(t, tt.message, ErrorMessage(tt.err))
			assert.Equal(t, tt.op, ErrorOp(tt.err))
		})
	}
	assert.Equal(t, "requested 3, available 1", ErrorDetails(scoped)["sku-1"])
	assert.Nil(t, ErrorDetails(foreign))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{Invalid("payment.create", "amount must be positive"), EINVALID},
		{Unauthorized("cart.merge", "sign in first"), EUNAUTHORIZED},
		{Forbidden("order.status", "staff only"), EFORBIDDEN},
		{Conflict("booking.block", "slot has bookings"), ECONFLICT},
		{Errorf(ERATELIMIT, "", "retry in %ds", 30), ERATELIMIT},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.True(t, IsCode(tt.err, tt.code))
			assert.Empty(t, ErrorReason(tt.err))
		})
	}
	assert.Equal(t, "retry in 30s", ErrorMessage(Errorf(ERATELIMIT, "", "retry in %ds", 30)))
}

func TestError_IsMatchesReason(t *testing.T) {
	scoped := ErrTimeSlotUnavailable.With("booking.create", nil)

	assert.ErrorIs(t, scoped, ErrTimeSlotUnavailable)
	assert.NotErrorIs(t, scoped, ErrInsufficientStock)
	assert.Empty(t, ErrTimeSlotUnavailable.Op, "With must not mutate the sentinel")

	// Without a reason only identity matches.
	a := &Error{Code: EINVALID, Message: "a"}
	b := &Error{Code: EINVALID, Message: "a"}
	assert.NotErrorIs(t, a, b)
	assert.ErrorIs(t, a, a)
}

func TestError_WithKeepsDetailsWhenNil(t *testing.T) {
	first := ErrItemUnavailable.With("order.create", map[string]string{"line-1": "product inactive"})
	second := first.With("cart.convert", nil)

	assert.Equal(t, "cart.convert", second.Op)
	assert.Equal(t, first.Details, second.Details)
	assert.Equal(t, "order.create", first.Op)
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		err    *Error
		code   string
		reason string
	}{
		{ErrInsufficientStock, ECONFLICT, "INSUFFICIENT_STOCK"},
		{ErrTimeSlotUnavailable, ECONFLICT, "TIME_SLOT_UNAVAILABLE"},
		{ErrInvalidStatusTransition, EINVALID, "INVALID_STATUS_TRANSITION"},
		{ErrOrderNotCancellable, ECONFLICT, "ORDER_NOT_CANCELLABLE"},
		{ErrBookingNotCancellable, ECONFLICT, "BOOKING_CANNOT_BE_CANCELLED"},
		{ErrPaymentAlreadyCompleted, ECONFLICT, "PAYMENT_ALREADY_COMPLETED"},
		{ErrInvalidBookingDate, EINVALID, "INVALID_BOOKING_DATE"},
		{ErrInvalidRefundAmount, EINVALID, "INVALID_REFUND_AMOUNT"},
		{ErrOrderNotFound, ENOTFOUND, "ORDER_NOT_FOUND"},
		{ErrProviderFailure, EPAYMENT, "PROVIDER_FAILURE"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.reason, tt.err.Reason)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("booking.create", "date", "is required")
	assert.Equal(t, "booking.create: date: is required", err.Error())
	assert.Equal(t, map[string]string{"date": "is required"}, GetValidationFields(err))

	err = AddFieldError(err, "hour", "must be at most 23")
	require.Len(t, GetValidationFields(err), 2)
	assert.Equal(t, "booking.create: validation failed for 2 fields", err.Error())

	fresh := AddFieldError(errors.New("other"), "qty", "must be positive")
	assert.Equal(t, "qty: must be positive", fresh.Error())

	assert.Nil(t, GetValidationFields(ErrInsufficientStock))
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", err), err)
}
