package domain

import "slices"

// transitions is a static from→{to} table for one entity type.
type transitions[S ~string] map[S][]S

func (t transitions[S]) allows(from, to S) bool {
	return slices.Contains(t[from], to)
}

func (t transitions[S]) known(s S) bool {
	_, ok := t[s]
	return ok
}

func (t transitions[S]) check(op string, from, to S) error {
	if t.allows(from, to) {
		return nil
	}
	return ErrInvalidStatusTransition.With(op, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

// =============================================================================
// ORDER
// =============================================================================

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var orderTransitions = transitions[OrderStatus]{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  nil,
	OrderStatusRefunded:   nil,
}

func (s OrderStatus) Valid() bool                         { return orderTransitions.known(s) }
func (s OrderStatus) IsTerminal() bool                    { return s.Valid() && len(orderTransitions[s]) == 0 }
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool { return orderTransitions.allows(s, to) }

// Cancellable reports whether self-service cancellation is permitted.
// Narrower than the transition table: PROCESSING→CANCELLED is an operator path.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CheckOrderTransition returns ErrInvalidStatusTransition when from→to is not in the table.
func CheckOrderTransition(op string, from, to OrderStatus) error {
	return orderTransitions.check(op, from, to)
}

// =============================================================================
// BOOKING
// =============================================================================

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
	BookingStatusNoShow     BookingStatus = "NO_SHOW"
)

var bookingTransitions = transitions[BookingStatus]{
	BookingStatusPending:    {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusInProgress: {BookingStatusCompleted},
	BookingStatusCompleted:  nil,
	BookingStatusCancelled:  nil,
	BookingStatusNoShow:     nil,
}

func (s BookingStatus) Valid() bool      { return bookingTransitions.known(s) }
func (s BookingStatus) IsTerminal() bool { return s.Valid() && len(bookingTransitions[s]) == 0 }

func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	return bookingTransitions.allows(s, to)
}

// Cancellable reports whether the status permits cancellation at all;
// the 24-hour window is checked by the workflow.
func (s BookingStatus) Cancellable() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// HoldsSlot reports whether a booking in this status occupies its slot.
func (s BookingStatus) HoldsSlot() bool {
	return s != BookingStatusCancelled
}

// CheckBookingTransition returns ErrInvalidStatusTransition when from→to is not in the table.
func CheckBookingTransition(op string, from, to BookingStatus) error {
	return bookingTransitions.check(op, from, to)
}

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

var paymentTransitions = transitions[PaymentStatus]{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:     {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
	PaymentStatusRefunded:   nil,
	PaymentStatusCancelled:  nil,
}

func (s PaymentStatus) Valid() bool      { return paymentTransitions.known(s) }
func (s PaymentStatus) IsTerminal() bool { return s.Valid() && len(paymentTransitions[s]) == 0 }

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	return paymentTransitions.allows(s, to)
}

// CheckPaymentTransition returns ErrInvalidStatusTransition when from→to is not in the table.
func CheckPaymentTransition(op string, from, to PaymentStatus) error {
	return paymentTransitions.check(op, from, to)
}
