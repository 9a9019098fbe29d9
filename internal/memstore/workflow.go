package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Orders
// =============================================================================

func (q *querier) InsertOrder(_ context.Context, o domain.Order) error {
	defer q.lock()()
	for _, existing := range q.st.orders {
		if existing.OrderNumber == o.OrderNumber {
			return unique(repository.ConstraintOrderNumber)
		}
	}
	o.Items = slices.Clone(o.Items)
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	q.st.orders[o.ID] = o
	return nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func (q *querier) GetOrder(_ context.Context, id uuid.UUID) (domain.Order, error) {
	defer q.lock()()
	o, err := get(q.st.orders, id)
	return cloneOrder(o), err
}

func (q *querier) GetOrderByNumber(_ context.Context, number string) (domain.Order, error) {
	defer q.lock()()
	for _, o := range q.st.orders {
		if o.OrderNumber == number {
			return cloneOrder(o), nil
		}
	}
	return domain.Order{}, repository.ErrNoRows
}

func newestOrderFirst(a, b domain.Order) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

func (q *querier) ListOrdersByUser(_ context.Context, userID uuid.UUID, page repository.Page) ([]domain.Order, error) {
	defer q.lock()()
	var out []domain.Order
	for _, o := range q.st.orders {
		if o.UserID == userID {
			o.Items = nil
			out = append(out, o)
		}
	}
	slices.SortFunc(out, newestOrderFirst)
	return window(out, page), nil
}

func (q *querier) ListOrders(_ context.Context, arg repository.ListOrdersParams) ([]domain.Order, error) {
	defer q.lock()()
	var out []domain.Order
	for _, o := range q.st.orders {
		if arg.Status == nil || o.Status == *arg.Status {
			o.Items = nil
			out = append(out, o)
		}
	}
	slices.SortFunc(out, newestOrderFirst)
	return window(out, arg.Page), nil
}

func (q *querier) UpdateOrderStatus(_ context.Context, arg repository.UpdateOrderStatusParams) (bool, error) {
	defer q.lock()()
	o, ok := q.st.orders[arg.ID]
	if !ok || o.Status != arg.From {
		return false, nil
	}
	o.Status = arg.To
	if arg.TrackingNumber != nil {
		o.TrackingNumber = *arg.TrackingNumber
	}
	if arg.CancelReason != "" {
		o.CancelReason = arg.CancelReason
	}
	o.ShippedAt = cmp.Or(arg.ShippedAt, o.ShippedAt)
	o.DeliveredAt = cmp.Or(arg.DeliveredAt, o.DeliveredAt)
	o.CancelledAt = cmp.Or(arg.CancelledAt, o.CancelledAt)
	o.UpdatedAt = arg.Now
	q.st.orders[o.ID] = o
	return true, nil
}

// =============================================================================
// Bookings
// =============================================================================

func (q *querier) InsertBooking(_ context.Context, b domain.Booking) error {
	defer q.lock()()
	b.ScheduledDate = domain.CivilDate(b.ScheduledDate)
	for _, existing := range q.st.bookings {
		if existing.BookingNumber == b.BookingNumber {
			return unique(repository.ConstraintBookingNumber)
		}
		if existing.Status != domain.BookingStatusCancelled &&
			b.Status != domain.BookingStatusCancelled &&
			existing.ServiceID == b.ServiceID &&
			existing.ScheduledDate.Equal(b.ScheduledDate) &&
			existing.ScheduledHour == b.ScheduledHour {
			return unique(repository.ConstraintBookingSlot)
		}
	}
	b.AddOns = slices.Clone(b.AddOns)
	for i := range b.AddOns {
		b.AddOns[i].BookingID = b.ID
	}
	q.st.bookings[b.ID] = b
	return nil
}

func cloneBooking(b domain.Booking) domain.Booking {
	b.AddOns = slices.Clone(b.AddOns)
	return b
}

func (q *querier) GetBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	defer q.lock()()
	b, err := get(q.st.bookings, id)
	return cloneBooking(b), err
}

func (q *querier) GetBookingByNumber(_ context.Context, number string) (domain.Booking, error) {
	defer q.lock()()
	for _, b := range q.st.bookings {
		if b.BookingNumber == number {
			return cloneBooking(b), nil
		}
	}
	return domain.Booking{}, repository.ErrNoRows
}

func (q *querier) ListBookingsByUser(_ context.Context, userID uuid.UUID, page repository.Page) ([]domain.Booking, error) {
	defer q.lock()()
	var out []domain.Booking
	for _, b := range q.st.bookings {
		if b.UserID == userID {
			b.AddOns = nil
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.Booking) int {
		if c := b.ScheduledDate.Compare(a.ScheduledDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ScheduledHour, a.ScheduledHour)
	})
	return window(out, page), nil
}

func (q *querier) ListActiveBookings(_ context.Context, arg repository.DateRangeParams) ([]domain.Booking, error) {
	defer q.lock()()
	var out []domain.Booking
	for _, b := range q.st.bookings {
		if b.ServiceID == arg.ServiceID && b.Status.HoldsSlot() && inRange(b.ScheduledDate, arg.From, arg.To) {
			b.AddOns = nil
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.Booking) int {
		if c := a.ScheduledDate.Compare(b.ScheduledDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ScheduledHour, b.ScheduledHour)
	})
	return out, nil
}

func (q *querier) UpdateBookingStatus(_ context.Context, arg repository.UpdateBookingStatusParams) (bool, error) {
	defer q.lock()()
	b, ok := q.st.bookings[arg.ID]
	if !ok || b.Status != arg.From {
		return false, nil
	}
	b.Status = arg.To
	b.ConfirmedAt = cmp.Or(arg.ConfirmedAt, b.ConfirmedAt)
	b.CompletedAt = cmp.Or(arg.CompletedAt, b.CompletedAt)
	b.CancelledAt = cmp.Or(arg.CancelledAt, b.CancelledAt)
	if arg.CancellationReason != "" {
		b.CancellationReason = arg.CancellationReason
	}
	b.UpdatedAt = arg.Now
	q.st.bookings[b.ID] = b
	return true, nil
}

func (q *querier) InsertSlotBlock(_ context.Context, b domain.SlotBlock) error {
	defer q.lock()()
	b.Date = domain.CivilDate(b.Date)
	q.st.blocks[b.ID] = b
	return nil
}

func (q *querier) DeleteSlotBlock(_ context.Context, id uuid.UUID) error {
	defer q.lock()()
	if _, ok := q.st.blocks[id]; !ok {
		return repository.ErrNoRows
	}
	delete(q.st.blocks, id)
	return nil
}

func (q *querier) ListSlotBlocks(_ context.Context, arg repository.DateRangeParams) ([]domain.SlotBlock, error) {
	defer q.lock()()
	var out []domain.SlotBlock
	for _, b := range q.st.blocks {
		if b.ServiceID == arg.ServiceID && inRange(b.Date, arg.From, arg.To) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.SlotBlock) int { return a.Date.Compare(b.Date) })
	return out, nil
}

// =============================================================================
// Payments
// =============================================================================

func sameRef(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func (q *querier) checkPaymentUnique(p domain.Payment) error {
	for _, existing := range q.st.payments {
		if existing.ID == p.ID {
			continue
		}
		if sameRef(existing.OrderID, p.OrderID) {
			return unique(repository.ConstraintPaymentOrder)
		}
		if sameRef(existing.BookingID, p.BookingID) {
			return unique(repository.ConstraintPaymentBooking)
		}
		if p.ProviderTransactionID != "" &&
			existing.Provider == p.Provider &&
			existing.ProviderTransactionID == p.ProviderTransactionID {
			return unique(repository.ConstraintPaymentProviderTx)
		}
	}
	return nil
}

func clonePayment(p domain.Payment) domain.Payment {
	p.ProviderMetadata = maps.Clone(p.ProviderMetadata)
	if p.BillingAddress != nil {
		a := *p.BillingAddress
		p.BillingAddress = &a
	}
	return p
}

func (q *querier) InsertPayment(_ context.Context, p domain.Payment) error {
	defer q.lock()()
	if err := q.checkPaymentUnique(p); err != nil {
		return err
	}
	q.st.payments[p.ID] = clonePayment(p)
	return nil
}

func (q *querier) GetPayment(_ context.Context, id uuid.UUID) (domain.Payment, error) {
	defer q.lock()()
	p, err := get(q.st.payments, id)
	return clonePayment(p), err
}

// GetPaymentForUpdate needs no row lock: transactions are serialized.
func (q *querier) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	return q.GetPayment(ctx, id)
}

func (q *querier) GetPaymentByProviderTx(_ context.Context, provider, transactionID string) (domain.Payment, error) {
	defer q.lock()()
	for _, p := range q.st.payments {
		if p.Provider == provider && p.ProviderTransactionID == transactionID {
			return clonePayment(p), nil
		}
	}
	return domain.Payment{}, repository.ErrNoRows
}

func (q *querier) UpdatePayment(_ context.Context, p domain.Payment, from domain.PaymentStatus) (bool, error) {
	defer q.lock()()
	existing, ok := q.st.payments[p.ID]
	if !ok || existing.Status != from {
		return false, nil
	}
	if err := q.checkPaymentUnique(p); err != nil {
		return false, err
	}
	// Identity and target columns are immutable.
	p.OrderID, p.BookingID = existing.OrderID, existing.BookingID
	p.AmountCents, p.Currency = existing.AmountCents, existing.Currency
	p.Method, p.Provider, p.CreatedAt = existing.Method, existing.Provider, existing.CreatedAt
	q.st.payments[p.ID] = clonePayment(p)
	return true, nil
}

func (q *querier) InsertPaymentRefund(_ context.Context, r domain.PaymentRefund) error {
	defer q.lock()()
	if _, ok := q.st.payments[r.PaymentID]; !ok {
		return repository.ErrNoRows
	}
	q.st.refunds[r.ID] = r
	return nil
}

func (q *querier) SettlePaymentRefund(_ context.Context, r domain.PaymentRefund) (bool, error) {
	defer q.lock()()
	existing, ok := q.st.refunds[r.ID]
	if !ok || existing.Status != domain.RefundStatusPending {
		return false, nil
	}
	existing.ProviderRefundID, existing.Status, existing.SettledAt = r.ProviderRefundID, r.Status, r.SettledAt
	q.st.refunds[r.ID] = existing
	return true, nil
}

func (q *querier) ListPaymentRefunds(_ context.Context, paymentID uuid.UUID) ([]domain.PaymentRefund, error) {
	defer q.lock()()
	var out []domain.PaymentRefund
	for _, r := range q.st.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.PaymentRefund) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}
