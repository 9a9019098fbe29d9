package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/motorworks/internal/billing"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func newPayments(e *env) (service.PaymentService, *billing.MockProvider) {
	mock := billing.NewMockProvider("mock", webhookSecret)
	return service.NewPaymentService(e.store, billing.NewRegistry(mock), e.opts), mock
}

// pendingOrderPayment returns a PENDING payment for the full total of a
// freshly placed 22000 cent order.
func pendingOrderPayment(t *testing.T) (*checkout, service.PaymentService, *billing.MockProvider, domain.Order, *domain.Payment) {
	t.Helper()
	c, o, _ := placedOrder(t)
	payments, mock := newPayments(c.env)
	p, err := payments.Create(context.Background(), service.CreatePaymentParams{
		OrderID:  &o.ID,
		Method:   "card",
		Provider: "mock",
	})
	require.NoError(t, err)
	return c, payments, mock, o, p
}

func signedEvent(t *testing.T, eventType, txID string, amount int64) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":             "evt_" + uuid.NewString()[:8],
		"type":           eventType,
		"transaction_id": txID,
		"amount_cents":   amount,
	})
	require.NoError(t, err)
	return payload, billing.MockSignature(webhookSecret, payload)
}

func chargeCalls(mock *billing.MockProvider) int {
	n := 0
	for _, c := range mock.Calls() {
		if strings.HasPrefix(c, "Charge(") {
			n++
		}
	}
	return n
}

func TestPayment_Create(t *testing.T) {
	ctx := context.Background()
	_, payments, _, o, p := pendingOrderPayment(t)

	assert.Equal(t, domain.PaymentStatusPending, p.Status)
	assert.Equal(t, o.TotalCents, p.AmountCents, "zero amount charges the full total")
	assert.Equal(t, "usd", p.Currency)

	_, err := payments.Create(ctx, service.CreatePaymentParams{OrderID: &o.ID, Method: "card", Provider: "mock"})
	assert.ErrorIs(t, err, domain.ErrPaymentExists)

	bookingID := uuid.New()
	tests := []struct {
		name   string
		params service.CreatePaymentParams
		want   error
	}{
		{"no target", service.CreatePaymentParams{Method: "card", Provider: "mock"}, service.ErrPaymentTargetRequired},
		{"two targets", service.CreatePaymentParams{OrderID: &o.ID, BookingID: &bookingID, Method: "card", Provider: "mock"}, service.ErrPaymentTargetRequired},
		{"unknown provider", service.CreatePaymentParams{OrderID: &o.ID, Method: "card", Provider: "paypal"}, domain.ErrUnknownProvider},
		{"unknown order", service.CreatePaymentParams{OrderID: ptr(uuid.New()), Method: "card", Provider: "mock"}, domain.ErrOrderNotFound},
		{"unknown booking", service.CreatePaymentParams{BookingID: &bookingID, Method: "card", Provider: "mock"}, domain.ErrBookingNotFound},
		{"missing method", service.CreatePaymentParams{OrderID: &o.ID, Provider: "mock"}, service.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payments.Create(ctx, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPayment_Create_AmountBounds(t *testing.T) {
	ctx := context.Background()
	c, o, _ := placedOrder(t)
	payments, _ := newPayments(c.env)

	_, err := payments.Create(ctx, service.CreatePaymentParams{OrderID: &o.ID, AmountCents: o.TotalCents + 1, Method: "card", Provider: "mock"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentAmount)

	p, err := payments.Create(ctx, service.CreatePaymentParams{OrderID: &o.ID, AmountCents: 5000, Method: "card", Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), p.AmountCents)
}

func TestPayment_Create_CancelledTarget(t *testing.T) {
	ctx := context.Background()
	c, o, _ := placedOrder(t)
	payments, _ := newPayments(c.env)
	_, err := c.orders.Cancel(ctx, o.ID, "")
	require.NoError(t, err)

	_, err = payments.Create(ctx, service.CreatePaymentParams{OrderID: &o.ID, Method: "card", Provider: "mock"})
	assert.ErrorIs(t, err, domain.ErrTargetCancelled)
}

func TestPayment_Process_Success(t *testing.T) {
	ctx := context.Background()
	c, payments, _, o, p := pendingOrderPayment(t)

	got, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess, PayerEmail: "dana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
	assert.NotEmpty(t, got.ProviderTransactionID)
	assert.NotNil(t, got.ProcessedAt)

	order, err := c.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status, "payment confirms the order")
	assert.Contains(t, c.events.Types(), notify.PaymentCompleted)

	_, err = payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCompleted)

	_, err = payments.Process(ctx, p.ID, service.ProcessPaymentParams{})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestPayment_DeclineThenRetry(t *testing.T) {
	ctx := context.Background()
	c, payments, mock, _, p := pendingOrderPayment(t)

	failed, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenDeclined})
	require.NoError(t, err, "a decline is an outcome, not an error")
	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "card declined", failed.FailureReason)
	assert.NotNil(t, failed.FailedAt)
	assert.Contains(t, c.events.Types(), notify.PaymentFailed)

	_, err = payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition, "a failed payment is retried, not processed")

	retried, err := payments.Retry(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, retried.Status)
	assert.Empty(t, retried.FailureReason)
	assert.Nil(t, retried.FailedAt)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, 2, chargeCalls(mock))

	_, err = payments.Retry(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCompleted)
}

func TestPayment_Retry_RequiresFailed(t *testing.T) {
	ctx := context.Background()
	_, payments, _, _, p := pendingOrderPayment(t)

	_, err := payments.Retry(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestPayment_Process_ProviderFailures(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantReason string
	}{
		{"provider error", billing.MockTokenError, "gateway unavailable"},
		{"timeout", billing.MockTokenTimeout, "provider timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, o, _ := placedOrder(t)
			c.opts.ProviderTimeout = 20 * time.Millisecond
			payments, _ := newPayments(c.env)
			p, err := payments.Create(ctx, service.CreatePaymentParams{OrderID: &o.ID, Method: "card", Provider: "mock"})
			require.NoError(t, err)

			got, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: tt.token})
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentStatusFailed, got.Status)
			assert.Contains(t, got.FailureReason, tt.wantReason)

			order, _ := c.orders.FindByID(ctx, o.ID)
			assert.Equal(t, domain.OrderStatusPending, order.Status)
		})
	}
}

func TestPayment_Process_CancelledTarget(t *testing.T) {
	ctx := context.Background()
	c, payments, mock, o, p := pendingOrderPayment(t)
	_, err := c.orders.Cancel(ctx, o.ID, "")
	require.NoError(t, err)

	_, err = payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	assert.ErrorIs(t, err, domain.ErrTargetCancelled)
	assert.Zero(t, chargeCalls(mock))
}

func TestPayment_ConcurrentProcessChargesOnce(t *testing.T) {
	ctx := context.Background()
	_, payments, mock, _, p := pendingOrderPayment(t)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, chargeCalls(mock))
	got, err := payments.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
}

func TestPayment_CompletedAfterTargetCancelledIsFlagged(t *testing.T) {
	ctx := context.Background()
	c, _, mock, o, p := pendingOrderPayment(t)

	var logs bytes.Buffer
	opts := c.env.opts
	opts.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	payments := service.NewPaymentService(c.env.store, billing.NewRegistry(mock), opts)

	mock.ChargeFunc = func(context.Context, billing.ChargeParams) (*billing.ChargeResult, error) {
		// The customer cancels while the charge is in flight.
		_, err := c.orders.Cancel(ctx, o.ID, "changed my mind")
		require.NoError(t, err)
		return &billing.ChargeResult{Status: billing.ChargeSucceeded, TransactionID: "mock_tx_late"}, nil
	}

	got, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	order, err := c.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status, "a cancelled order is not confirmed")
	assert.Contains(t, logs.String(), "payment completed for a cancelled target")
	assert.Contains(t, logs.String(), o.ID.String())
}

func TestPayment_RequiresActionThenWebhook(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	bookings := newBookings(e, e.store)
	svc := e.detailing()
	booking, err := bookings.Create(ctx, bookingParams(e, svc, 1, 9))
	require.NoError(t, err)

	payments, _ := newPayments(e)
	p, err := payments.Create(ctx, service.CreatePaymentParams{BookingID: &booking.Booking.ID, Method: "card", Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, int64(80000), p.AmountCents)

	pending, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockToken3DS})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProcessing, pending.Status)
	assert.True(t, pending.RequiresAction)
	assert.NotEmpty(t, pending.ActionURL)
	assert.Contains(t, e.events.Types(), notify.PaymentActionNeeded)

	payload, sig := signedEvent(t, billing.EventPaymentSucceeded, pending.ProviderTransactionID, 0)
	res, err := payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Status)

	res, err = payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Applied, "replays are no-ops")

	got, err := bookings.FindByID(ctx, booking.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
}

func TestPayment_WebhookFailure(t *testing.T) {
	ctx := context.Background()
	_, payments, _, _, p := pendingOrderPayment(t)
	pending, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockToken3DS})
	require.NoError(t, err)

	payload, sig := signedEvent(t, billing.EventPaymentFailed, pending.ProviderTransactionID, 0)
	res, err := payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)

	got, _ := payments.FindByID(ctx, p.ID)
	assert.NotEmpty(t, got.FailureReason)
	assert.False(t, got.RequiresAction)
}

func TestPayment_WebhookRejections(t *testing.T) {
	ctx := context.Background()
	_, payments, _, _, _ := pendingOrderPayment(t)

	payload, _ := signedEvent(t, billing.EventPaymentSucceeded, "mock_txn_1", 0)
	_, err := payments.HandleWebhook(ctx, "mock", payload, "deadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidWebhookSignature)

	payload, sig := signedEvent(t, billing.EventPaymentSucceeded, "mock_txn_unknown", 0)
	_, err = payments.HandleWebhook(ctx, "mock", payload, sig)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	payload, sig = signedEvent(t, "customer.updated", "mock_txn_1", 0)
	res, err := payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, billing.EventIgnored, res.EventType)

	_, err = payments.HandleWebhook(ctx, "paypal", payload, sig)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestPayment_WebhookSuccessForFailedPaymentIsNotApplied(t *testing.T) {
	ctx := context.Background()
	_, payments, _, _, p := pendingOrderPayment(t)
	failed, err := payments.Process(ctx, p.ID, service.ProcessPaymentParams{Token: billing.MockTokenDeclined})
	require.NoError(t, err)
	require.NotEmpty(t, failed.ProviderTransactionID)

	payload, sig := signedEvent(t, billing.EventPaymentSucceeded, failed.ProviderTransactionID, 0)
	res, err := payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
}

func completedPayment(t *testing.T) (service.PaymentService, *billing.MockProvider, *domain.Payment, *env) {
	t.Helper()
	c, payments, mock, _, p := pendingOrderPayment(t)
	got, err := payments.Process(context.Background(), p.ID, service.ProcessPaymentParams{Token: billing.MockTokenSuccess})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, got.Status)
	return payments, mock, got, c.env
}

func TestPayment_PartialThenFullRefund(t *testing.T) {
	ctx := context.Background()
	payments, mock, p, e := completedPayment(t)

	partial, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{AmountCents: ptr(int64(5000)), Reason: "scratched rotor"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, partial.Payment.Status, "partial refunds keep the status")
	assert.Equal(t, int64(5000), partial.Payment.RefundedCents)
	assert.Equal(t, start.Add(service.RefundSettlementWindow), partial.Refund.ExpectedBy)

	_, err = payments.Refund(ctx, p.ID, service.RefundPaymentParams{AmountCents: ptr(int64(20000))})
	require.ErrorIs(t, err, domain.ErrInvalidRefundAmount)
	assert.Equal(t, "17000", domain.ErrorDetails(err)["refundable_cents"])

	_, err = payments.Refund(ctx, p.ID, service.RefundPaymentParams{AmountCents: ptr(int64(0))})
	assert.ErrorIs(t, err, domain.ErrInvalidRefundAmount)

	full, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, full.Payment.Status)
	assert.Equal(t, p.AmountCents, full.Payment.RefundedCents)
	assert.NotNil(t, full.Payment.RefundedAt)
	assert.Equal(t, p.AmountCents, mock.RefundedCents(p.ProviderTransactionID))

	_, err = payments.Refund(ctx, p.ID, service.RefundPaymentParams{})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	refunds, err := payments.ListRefunds(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)
	assert.Contains(t, e.events.Types(), notify.PaymentRefunded)
}

func TestPayment_Refund_RequiresCompleted(t *testing.T) {
	ctx := context.Background()
	_, payments, _, _, p := pendingOrderPayment(t)

	_, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = payments.Refund(ctx, uuid.New(), service.RefundPaymentParams{})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPayment_Refund_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	payments, mock, p, _ := completedPayment(t)
	mock.RefundFunc = func(context.Context, billing.RefundParams) (*billing.RefundResult, error) {
		return nil, &billing.ProviderError{Provider: "mock", Message: "refund rejected"}
	}

	_, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	got, _ := payments.FindByID(ctx, p.ID)
	assert.Zero(t, got.RefundedCents, "nothing is recorded when the provider refuses")
	assert.Zero(t, got.RefundPendingCents, "the reservation is released")
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	refunds, err := payments.ListRefunds(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, domain.RefundStatusFailed, refunds[0].Status)
	assert.NotNil(t, refunds[0].SettledAt)

	mock.RefundFunc = nil
	full, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{})
	require.NoError(t, err, "a released reservation can be refunded again")
	assert.Equal(t, domain.PaymentStatusRefunded, full.Payment.Status)
}

func TestPayment_ConcurrentRefundsReserveTheAmount(t *testing.T) {
	ctx := context.Background()
	payments, mock, p, _ := completedPayment(t)

	var calls atomic.Int32
	var keys sync.Map
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	mock.RefundFunc = func(_ context.Context, params billing.RefundParams) (*billing.RefundResult, error) {
		calls.Add(1)
		keys.Store(params.IdempotencyKey, params.AmountCents)
		entered <- struct{}{}
		<-release
		return &billing.RefundResult{RefundID: "re_gate", Status: "succeeded"}, nil
	}

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{})
			errs <- err
		}()
	}

	<-entered
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, domain.ErrInvalidRefundAmount, "the second refund finds nothing left to refund")
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("second refund reached the provider")
	}

	got, err := payments.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.AmountCents, got.RefundPendingCents, "the amount is held while the provider works")
	assert.Zero(t, got.RefundableCents())

	close(release)
	require.NoError(t, <-errs)

	assert.EqualValues(t, 1, calls.Load())
	got, err = payments.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.Status)
	assert.Equal(t, p.AmountCents, got.RefundedCents)
	assert.Zero(t, got.RefundPendingCents)

	refunds, err := payments.ListRefunds(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	amount, ok := keys.Load(refunds[0].ID.String())
	require.True(t, ok, "the refund id is the provider idempotency key")
	assert.Equal(t, p.AmountCents, amount)
	assert.Equal(t, "re_gate", refunds[0].ProviderRefundID)
}

func TestPayment_RefundWebhookDuringPendingRefund(t *testing.T) {
	ctx := context.Background()
	payments, mock, p, _ := completedPayment(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	mock.RefundFunc = func(context.Context, billing.RefundParams) (*billing.RefundResult, error) {
		close(entered)
		<-release
		return &billing.RefundResult{RefundID: "re_1", Status: "succeeded"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := payments.Refund(ctx, p.ID, service.RefundPaymentParams{AmountCents: ptr(int64(5000))})
		done <- err
	}()
	<-entered

	// The provider announces the refund before the call returns.
	payload, sig := signedEvent(t, billing.EventPaymentRefunded, p.ProviderTransactionID, 5000)
	res, err := payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Applied, "a pending refund is counted once, by its own call")

	close(release)
	require.NoError(t, <-done)

	got, err := payments.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.RefundedCents)
	assert.Zero(t, got.RefundPendingCents)
}

func TestPayment_RefundWebhook(t *testing.T) {
	ctx := context.Background()
	payments, _, p, _ := completedPayment(t)

	payload, sig := signedEvent(t, billing.EventPaymentRefunded, p.ProviderTransactionID, 8000)
	res, err := payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Status)

	res, err = payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.False(t, res.Applied, "cumulative amount already recorded")

	payload, sig = signedEvent(t, billing.EventPaymentRefunded, p.ProviderTransactionID, 0)
	res, err = payments.HandleWebhook(ctx, "mock", payload, sig)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusRefunded, res.Status)

	got, _ := payments.FindByID(ctx, p.ID)
	assert.Equal(t, p.AmountCents, got.RefundedCents)
}

func TestPayment_ListRefunds_UnknownPayment(t *testing.T) {
	e := newEnv(t)
	payments, _ := newPayments(e)
	_, err := payments.ListRefunds(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = payments.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
