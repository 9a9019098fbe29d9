package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusRefunded, true},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusRefunded, OrderStatusDelivered, false},
		{OrderStatus("BOGUS"), OrderStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
			err := CheckOrderTransition("test", tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
			assert.Equal(t, string(tt.from), ErrorDetails(err)["from"])
		})
	}
}

func TestBookingTransitions(t *testing.T) {
	assert.True(t, BookingStatusConfirmed.CanTransitionTo(BookingStatusNoShow))
	assert.True(t, BookingStatusInProgress.CanTransitionTo(BookingStatusCompleted))
	assert.False(t, BookingStatusInProgress.CanTransitionTo(BookingStatusCancelled))
	assert.False(t, BookingStatusPending.CanTransitionTo(BookingStatusInProgress))

	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, BookingStatusCancelled.HoldsSlot())
	assert.True(t, BookingStatusNoShow.HoldsSlot())
}

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusProcessing))
	assert.False(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusCompleted))
	assert.False(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusProcessing))
	assert.True(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusRefunded))
	assert.True(t, PaymentStatusRefunded.IsTerminal())
	assert.False(t, PaymentStatus("BOGUS").IsTerminal())
}

// Walk every reachable sequence from the initial state; each step must land
// on a status listed for the previous one.
func TestStatusMachineClosure(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
	}

	seen := map[OrderStatus]bool{OrderStatusPending: true}
	queue := []OrderStatus{OrderStatusPending}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, to := range all {
			err := CheckOrderTransition("walk", cur, to)
			if err != nil {
				continue
			}
			assert.Contains(t, orderTransitions[cur], to)
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	assert.Len(t, seen, len(all), "every status is reachable from PENDING")

	for _, s := range all {
		assert.True(t, s.Valid())
	}
}

func TestCancellable(t *testing.T) {
	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusConfirmed.Cancellable())
	assert.False(t, OrderStatusProcessing.Cancellable())
	assert.True(t, BookingStatusConfirmed.Cancellable())
	assert.False(t, BookingStatusInProgress.Cancellable())
}
