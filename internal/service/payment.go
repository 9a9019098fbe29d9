package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/billing"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/telemetry"
	"github.com/google/uuid"
)

// RefundSettlementWindow is how long a provider is expected to take to
// return refunded funds.
const RefundSettlementWindow = 10 * 24 * time.Hour

// PaymentService provides business logic for settling orders and bookings
type PaymentService interface {
	// Create opens a PENDING payment for one order or booking.
	Create(ctx context.Context, params CreatePaymentParams) (*domain.Payment, error)

	// Process charges a PENDING payment. A decline, provider error or
	// timeout is not returned as an error: the payment comes back FAILED
	// with a reason. A payment needing customer action stays PROCESSING
	// with RequiresAction set.
	Process(ctx context.Context, paymentID uuid.UUID, params ProcessPaymentParams) (*domain.Payment, error)

	// Retry charges a FAILED payment again with fresh input.
	Retry(ctx context.Context, paymentID uuid.UUID, params ProcessPaymentParams) (*domain.Payment, error)

	// Refund returns part or all of a COMPLETED payment. Only a refund
	// reaching the full amount changes the status.
	Refund(ctx context.Context, paymentID uuid.UUID, params RefundPaymentParams) (*PaymentRefundResult, error)

	// HandleWebhook reconciles a provider notification with the payment it
	// references. Replayed notifications are no-ops.
	HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) (*WebhookResult, error)

	FindByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentRefund, error)
}

// CreatePaymentParams targets exactly one of OrderID or BookingID. A zero
// AmountCents charges the target's full total.
type CreatePaymentParams struct {
	OrderID        *uuid.UUID       `json:"order_id"`
	BookingID      *uuid.UUID       `json:"booking_id"`
	AmountCents    int64            `json:"amount_cents" validate:"gte=0"`
	Method         string           `json:"method" validate:"required,max=50"`
	Provider       string           `json:"provider" validate:"required"`
	BillingAddress *address.Address `json:"billing_address"`
}

type ProcessPaymentParams struct {
	Token          string           `json:"token" validate:"required"`
	BillingAddress *address.Address `json:"billing_address"`
	PayerEmail     string           `json:"payer_email" validate:"omitempty,email"`
}

// RefundPaymentParams refunds the remaining balance when AmountCents is nil.
type RefundPaymentParams struct {
	AmountCents *int64 `json:"amount_cents"`
	Reason      string `json:"reason" validate:"max=500"`
}

type PaymentRefundResult struct {
	Payment domain.Payment       `json:"payment"`
	Refund  domain.PaymentRefund `json:"refund"`
}

// WebhookResult reports what a notification changed. Applied is false for
// ignored event types and replays.
type WebhookResult struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	PaymentID *uuid.UUID           `json:"payment_id,omitempty"`
	Status    domain.PaymentStatus `json:"status,omitempty"`
	Applied   bool                 `json:"applied"`
}

type paymentService struct {
	store     repository.Store
	providers *billing.Registry
	opts      Options
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(store repository.Store, providers *billing.Registry, opts Options) PaymentService {
	return &paymentService{
		store:     store,
		providers: providers,
		opts:      opts.withDefaults(),
	}
}

func (s *paymentService) provider(op, name string) (billing.Provider, error) {
	p, err := s.providers.Get(name)
	if err != nil {
		return nil, domain.ErrUnknownProvider.With(op, map[string]string{"provider": name})
	}
	return p, nil
}

func (s *paymentService) Create(ctx context.Context, params CreatePaymentParams) (*domain.Payment, error) {
	const op = "payment.create"
	if err := validateParams(op, params); err != nil {
		return nil, err
	}
	if (params.OrderID == nil) == (params.BookingID == nil) {
		return nil, ErrPaymentTargetRequired.With(op, nil)
	}
	provider, err := s.provider(op, params.Provider)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	var payment domain.Payment
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		total, err := s.targetTotal(ctx, q, op, params.OrderID, params.BookingID)
		if err != nil {
			return err
		}

		amount := params.AmountCents
		if amount == 0 {
			amount = total
		}
		if amount <= 0 || amount > total {
			return domain.ErrInvalidPaymentAmount.With(op, map[string]string{
				"amount_cents": strconv.FormatInt(amount, 10),
				"total_cents":  strconv.FormatInt(total, 10),
			})
		}

		payment = domain.Payment{
			ID:             uuid.New(),
			OrderID:        params.OrderID,
			BookingID:      params.BookingID,
			AmountCents:    amount,
			Currency:       s.opts.Currency,
			Method:         params.Method,
			Provider:       provider.Name(),
			Status:         domain.PaymentStatusPending,
			BillingAddress: params.BillingAddress,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = q.InsertPayment(ctx, payment)
		switch {
		case repository.IsUniqueViolation(err, repository.ConstraintPaymentOrder, repository.ConstraintPaymentBooking):
			return domain.ErrPaymentExists.With(op, nil)
		case err != nil:
			return domain.Internal(err, op, "failed to insert payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.InfoContext(ctx, "payment created",
		"payment_id", payment.ID,
		"provider", payment.Provider,
		"amount_cents", payment.AmountCents,
	)
	return &payment, nil
}

// targetTotal returns the amount due on the referenced order or booking,
// rejecting cancelled targets.
func (s *paymentService) targetTotal(ctx context.Context, q repository.Querier, op string, orderID, bookingID *uuid.UUID) (int64, error) {
	if orderID != nil {
		o, err := q.GetOrder(ctx, *orderID)
		if err != nil {
			return 0, notFound(err, domain.ErrOrderNotFound, op)
		}
		if o.Status == domain.OrderStatusCancelled {
			return 0, domain.ErrTargetCancelled.With(op, map[string]string{"order_id": o.ID.String()})
		}
		return o.TotalCents, nil
	}

	b, err := q.GetBooking(ctx, *bookingID)
	if err != nil {
		return 0, notFound(err, domain.ErrBookingNotFound, op)
	}
	if b.Status == domain.BookingStatusCancelled {
		return 0, domain.ErrTargetCancelled.With(op, map[string]string{"booking_id": b.ID.String()})
	}
	return b.TotalCents, nil
}

func (s *paymentService) Process(ctx context.Context, paymentID uuid.UUID, params ProcessPaymentParams) (*domain.Payment, error) {
	const op = "payment.process"
	return s.run(ctx, op, "process", paymentID, params, func(p *domain.Payment) error {
		switch p.Status {
		case domain.PaymentStatusPending:
			return nil
		case domain.PaymentStatusCompleted:
			return domain.ErrPaymentAlreadyCompleted.With(op, nil)
		default:
			return invalidPaymentTransition(op, p.Status, domain.PaymentStatusProcessing)
		}
	})
}

func (s *paymentService) Retry(ctx context.Context, paymentID uuid.UUID, params ProcessPaymentParams) (*domain.Payment, error) {
	const op = "payment.retry"
	return s.run(ctx, op, "retry", paymentID, params, func(p *domain.Payment) error {
		switch p.Status {
		case domain.PaymentStatusFailed:
			p.FailureReason = ""
			p.FailedAt = nil
			p.RetryCount++
			return nil
		case domain.PaymentStatusCompleted:
			return domain.ErrPaymentAlreadyCompleted.With(op, nil)
		default:
			return invalidPaymentTransition(op, p.Status, domain.PaymentStatusProcessing)
		}
	})
}

func invalidPaymentTransition(op string, from, to domain.PaymentStatus) error {
	return domain.ErrInvalidStatusTransition.With(op, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

// chargeOutcome is what the settle step writes back.
type chargeOutcome struct {
	status         domain.PaymentStatus
	label          string
	transactionID  string
	failureReason  string
	requiresAction bool
	actionURL      string
	raw            map[string]string
}

// run is the shared Process/Retry flow:
//
//  1. claim the payment (CAS to PROCESSING) in its own transaction
//  2. charge outside any transaction, bounded by the provider timeout
//  3. settle the outcome in a second transaction
//
// The claim guarantees that two concurrent calls cannot both charge.
func (s *paymentService) run(ctx context.Context, op, kind string, paymentID uuid.UUID, params ProcessPaymentParams, prepare func(p *domain.Payment) error) (*domain.Payment, error) {
	if err := validateParams(op, params); err != nil {
		return nil, err
	}

	claimed, provider, err := s.claim(ctx, op, paymentID, params, prepare)
	if err != nil {
		return nil, err
	}
	if telemetry.Business != nil {
		telemetry.Business.PaymentAttempts.WithLabelValues(provider.Name(), kind).Inc()
	}

	outcome := s.charge(ctx, provider, claimed, params)

	settled, applied, err := s.settle(ctx, op, claimed.ID, outcome)
	if err != nil {
		if outcome.status == domain.PaymentStatusCompleted {
			// Money moved but the record did not; someone must reconcile.
			telemetry.CaptureError(err, map[string]any{
				"payment_id":     claimed.ID.String(),
				"provider":       provider.Name(),
				"transaction_id": outcome.transactionID,
			})
		}
		s.opts.Logger.ErrorContext(ctx, "failed to settle payment",
			"payment_id", claimed.ID,
			"outcome", outcome.label,
			"error", err,
		)
		return nil, err
	}
	if !applied {
		s.opts.Logger.InfoContext(ctx, "payment settled concurrently",
			"payment_id", settled.ID,
			"status", settled.Status,
		)
		return settled, nil
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentOutcomes.WithLabelValues(provider.Name(), outcome.label).Inc()
	}
	s.settledEvent(ctx, *settled)
	return settled, nil
}

func (s *paymentService) claim(ctx context.Context, op string, paymentID uuid.UUID, params ProcessPaymentParams, prepare func(p *domain.Payment) error) (domain.Payment, billing.Provider, error) {
	now := s.opts.Now()
	var (
		payment  domain.Payment
		provider billing.Provider
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		p, err := q.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return notFound(err, domain.ErrPaymentNotFound, op)
		}
		from := p.Status
		if err := prepare(&p); err != nil {
			return err
		}
		if _, err := s.targetTotal(ctx, q, op, p.OrderID, p.BookingID); err != nil {
			return err
		}
		if provider, err = s.provider(op, p.Provider); err != nil {
			return err
		}

		p.Status = domain.PaymentStatusProcessing
		p.RequiresAction = false
		p.ActionURL = ""
		if params.BillingAddress != nil {
			p.BillingAddress = params.BillingAddress
		}
		p.UpdatedAt = now

		ok, err := q.UpdatePayment(ctx, p, from)
		if err != nil {
			return domain.Internal(err, op, "failed to claim payment")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}
		payment = p
		return nil
	})
	return payment, provider, err
}

func (s *paymentService) charge(ctx context.Context, provider billing.Provider, p domain.Payment, params ProcessPaymentParams) chargeOutcome {
	metadata := map[string]string{"payment_id": p.ID.String()}
	if p.OrderID != nil {
		metadata["order_id"] = p.OrderID.String()
	}
	if p.BookingID != nil {
		metadata["booking_id"] = p.BookingID.String()
	}
	if params.PayerEmail != "" {
		metadata["payer_email"] = params.PayerEmail
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	start := time.Now()
	res, err := provider.Charge(chargeCtx, billing.ChargeParams{
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		Token:          params.Token,
		Description:    fmt.Sprintf("Payment %s", p.ID),
		IdempotencyKey: fmt.Sprintf("%s-%d", p.ID, p.RetryCount),
		Metadata:       metadata,
	})
	if telemetry.Business != nil {
		telemetry.Business.ProviderLatency.WithLabelValues(provider.Name(), "charge").Observe(time.Since(start).Seconds())
	}

	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(chargeCtx.Err(), context.DeadlineExceeded)):
		return chargeOutcome{
			status:        domain.PaymentStatusFailed,
			label:         "timeout",
			failureReason: fmt.Sprintf("provider timed out after %s", s.opts.ProviderTimeout),
		}
	case err != nil:
		reason := err.Error()
		var pe *billing.ProviderError
		if errors.As(err, &pe) {
			reason = pe.Message
		}
		s.opts.Logger.WarnContext(ctx, "provider charge failed",
			"payment_id", p.ID,
			"provider", provider.Name(),
			"temporary", billing.IsTemporary(err),
			"error", err,
		)
		return chargeOutcome{status: domain.PaymentStatusFailed, label: "failed", failureReason: reason}
	}

	out := chargeOutcome{transactionID: res.TransactionID, raw: res.Raw}
	switch res.Status {
	case billing.ChargeSucceeded:
		out.status, out.label = domain.PaymentStatusCompleted, "completed"
	case billing.ChargeRequiresAction:
		out.status, out.label = domain.PaymentStatusProcessing, "requires_action"
		out.requiresAction, out.actionURL = true, res.ActionURL
	default:
		out.status, out.label = domain.PaymentStatusFailed, "failed"
		out.failureReason = res.FailureReason
		if out.failureReason == "" {
			out.failureReason = "payment was declined"
		}
	}
	return out
}

// settle writes the charge outcome. When the payment already left
// PROCESSING (a webhook got there first) the stored state wins and applied
// is false.
func (s *paymentService) settle(ctx context.Context, op string, paymentID uuid.UUID, out chargeOutcome) (*domain.Payment, bool, error) {
	now := s.opts.Now()
	var (
		payment         domain.Payment
		applied         bool
		targetCancelled bool
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		p, err := q.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return notFound(err, domain.ErrPaymentNotFound, op)
		}
		if p.Status != domain.PaymentStatusProcessing {
			payment = p
			return nil
		}

		p.Status = out.status
		if out.transactionID != "" {
			p.ProviderTransactionID = out.transactionID
		}
		if out.raw != nil {
			p.ProviderMetadata = out.raw
		}
		p.RequiresAction = out.requiresAction
		p.ActionURL = out.actionURL
		p.UpdatedAt = now
		switch out.status {
		case domain.PaymentStatusCompleted:
			p.ProcessedAt = &now
		case domain.PaymentStatusFailed:
			p.FailureReason = out.failureReason
			p.FailedAt = &now
		}

		ok, err := q.UpdatePayment(ctx, p, domain.PaymentStatusProcessing)
		if err != nil {
			return domain.Internal(err, op, "failed to record charge outcome")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}
		if p.Status == domain.PaymentStatusCompleted {
			if targetCancelled, err = confirmTarget(ctx, q, op, p, now); err != nil {
				return err
			}
		}

		payment, applied = p, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if targetCancelled {
		s.paidCancelledTarget(ctx, payment)
	}
	return &payment, applied, nil
}

// confirmTarget moves the paid order or booking from PENDING to CONFIRMED.
// A target that already moved on is left alone; cancelled reports whether it
// was cancelled while the charge was in flight.
func confirmTarget(ctx context.Context, q repository.Querier, op string, p domain.Payment, now time.Time) (cancelled bool, err error) {
	if p.OrderID != nil {
		ok, err := q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
			ID:   *p.OrderID,
			From: domain.OrderStatusPending,
			To:   domain.OrderStatusConfirmed,
			Now:  now,
		})
		if err != nil {
			return false, domain.Internal(err, op, "failed to confirm order")
		}
		if ok {
			return false, nil
		}
		o, err := q.GetOrder(ctx, *p.OrderID)
		if err != nil {
			return false, domain.Internal(err, op, "failed to load order")
		}
		return o.Status == domain.OrderStatusCancelled, nil
	}

	ok, err := q.UpdateBookingStatus(ctx, repository.UpdateBookingStatusParams{
		ID:          *p.BookingID,
		From:        domain.BookingStatusPending,
		To:          domain.BookingStatusConfirmed,
		ConfirmedAt: &now,
		Now:         now,
	})
	if err != nil {
		return false, domain.Internal(err, op, "failed to confirm booking")
	}
	if ok {
		return false, nil
	}
	b, err := q.GetBooking(ctx, *p.BookingID)
	if err != nil {
		return false, domain.Internal(err, op, "failed to load booking")
	}
	return b.Status == domain.BookingStatusCancelled, nil
}

// paidCancelledTarget flags a payment that completed after its order or
// booking was cancelled. The charge stands and must be refunded by staff.
func (s *paymentService) paidCancelledTarget(ctx context.Context, p domain.Payment) {
	extras := map[string]any{
		"payment_id":     p.ID.String(),
		"provider":       p.Provider,
		"transaction_id": p.ProviderTransactionID,
	}
	attrs := []any{"payment_id", p.ID, "provider", p.Provider}
	if p.OrderID != nil {
		extras["order_id"] = p.OrderID.String()
		attrs = append(attrs, "order_id", *p.OrderID)
	}
	if p.BookingID != nil {
		extras["booking_id"] = p.BookingID.String()
		attrs = append(attrs, "booking_id", *p.BookingID)
	}
	s.opts.Logger.WarnContext(ctx, "payment completed for a cancelled target", attrs...)
	telemetry.CaptureWarning(ctx, "payment completed for a cancelled target", extras)
}

func (s *paymentService) settledEvent(ctx context.Context, p domain.Payment) {
	data := map[string]any{
		"provider":     p.Provider,
		"amount_cents": p.AmountCents,
		"retry_count":  p.RetryCount,
	}
	if p.OrderID != nil {
		data["order_id"] = p.OrderID.String()
	}
	if p.BookingID != nil {
		data["booking_id"] = p.BookingID.String()
	}

	var eventType string
	switch {
	case p.Status == domain.PaymentStatusCompleted:
		eventType = notify.PaymentCompleted
	case p.Status == domain.PaymentStatusFailed:
		eventType = notify.PaymentFailed
		data["failure_reason"] = p.FailureReason
	case p.RequiresAction:
		eventType = notify.PaymentActionNeeded
		data["action_url"] = p.ActionURL
	default:
		return
	}

	s.opts.Logger.InfoContext(ctx, "payment settled",
		"payment_id", p.ID,
		"status", p.Status,
		"requires_action", p.RequiresAction,
	)
	s.opts.publish(ctx, eventType, p.ID.String(), data)
}

// Refund follows the same claim, call, settle shape as run: the amount is
// reserved under the payment lock before the provider is asked, so two
// concurrent refunds can never exceed what was charged.
func (s *paymentService) Refund(ctx context.Context, paymentID uuid.UUID, params RefundPaymentParams) (*PaymentRefundResult, error) {
	const op = "payment.refund"
	if err := validateParams(op, params); err != nil {
		return nil, err
	}

	p, refund, provider, err := s.reserveRefund(ctx, op, paymentID, params)
	if err != nil {
		return nil, err
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	start := time.Now()
	res, providerErr := provider.Refund(refundCtx, billing.RefundParams{
		TransactionID:  p.ProviderTransactionID,
		AmountCents:    refund.AmountCents,
		Reason:         params.Reason,
		IdempotencyKey: refund.ID.String(),
	})
	if telemetry.Business != nil {
		telemetry.Business.ProviderLatency.WithLabelValues(provider.Name(), "refund").Observe(time.Since(start).Seconds())
	}

	payment, refund, err := s.settleRefund(ctx, op, refund, res, providerErr)
	if err != nil {
		if providerErr == nil {
			// The provider refunded but the ledger did not record it.
			telemetry.CaptureError(err, map[string]any{
				"payment_id":         paymentID.String(),
				"refund_id":          refund.ID.String(),
				"provider_refund_id": res.RefundID,
				"amount_cents":       refund.AmountCents,
			})
		}
		s.opts.Logger.ErrorContext(ctx, "failed to settle refund",
			"payment_id", paymentID,
			"refund_id", refund.ID,
			"error", err,
		)
		return nil, err
	}
	if providerErr != nil {
		e := domain.ErrProviderFailure.With(op, map[string]string{"provider": provider.Name()})
		e.Err = providerErr
		return nil, e
	}

	if telemetry.Business != nil {
		telemetry.Business.RefundsIssued.WithLabelValues(payment.Provider).Inc()
		telemetry.Business.RefundAmount.WithLabelValues(payment.Provider).Add(float64(refund.AmountCents))
	}
	s.opts.Logger.InfoContext(ctx, "payment refunded",
		"payment_id", payment.ID,
		"amount_cents", refund.AmountCents,
		"refunded_cents", payment.RefundedCents,
		"status", payment.Status,
	)
	s.opts.publish(ctx, notify.PaymentRefunded, payment.ID.String(), map[string]any{
		"amount_cents":   refund.AmountCents,
		"refunded_cents": payment.RefundedCents,
		"full":           payment.Status == domain.PaymentStatusRefunded,
		"expected_by":    refund.ExpectedBy.Format(time.RFC3339),
	})

	return &PaymentRefundResult{Payment: payment, Refund: refund}, nil
}

// reserveRefund records a pending refund and holds its amount against the
// payment until settleRefund runs.
func (s *paymentService) reserveRefund(ctx context.Context, op string, paymentID uuid.UUID, params RefundPaymentParams) (domain.Payment, domain.PaymentRefund, billing.Provider, error) {
	now := s.opts.Now()
	var (
		payment  domain.Payment
		refund   domain.PaymentRefund
		provider billing.Provider
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		p, err := q.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return notFound(err, domain.ErrPaymentNotFound, op)
		}
		if p.Status != domain.PaymentStatusCompleted {
			return invalidPaymentTransition(op, p.Status, domain.PaymentStatusRefunded)
		}
		amount := p.RefundableCents()
		if params.AmountCents != nil {
			amount = *params.AmountCents
		}
		if err := checkRefundAmount(op, p, amount); err != nil {
			return err
		}
		if provider, err = s.provider(op, p.Provider); err != nil {
			return err
		}

		refund = domain.PaymentRefund{
			ID:          uuid.New(),
			PaymentID:   p.ID,
			AmountCents: amount,
			Reason:      params.Reason,
			Status:      domain.RefundStatusPending,
			ExpectedBy:  now.Add(RefundSettlementWindow),
			CreatedAt:   now,
		}
		if err := q.InsertPaymentRefund(ctx, refund); err != nil {
			return domain.Internal(err, op, "failed to record refund")
		}

		p.RefundPendingCents += amount
		p.UpdatedAt = now
		ok, err := q.UpdatePayment(ctx, p, p.Status)
		if err != nil {
			return domain.Internal(err, op, "failed to reserve refund")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}
		payment = p
		return nil
	})
	return payment, refund, provider, err
}

// settleRefund releases the reservation and, when the provider accepted
// the refund, counts it as refunded.
func (s *paymentService) settleRefund(ctx context.Context, op string, refund domain.PaymentRefund, res *billing.RefundResult, providerErr error) (domain.Payment, domain.PaymentRefund, error) {
	now := s.opts.Now()
	var payment domain.Payment
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		p, err := q.GetPaymentForUpdate(ctx, refund.PaymentID)
		if err != nil {
			return notFound(err, domain.ErrPaymentNotFound, op)
		}
		from := p.Status

		refund.SettledAt = &now
		p.RefundPendingCents = max(p.RefundPendingCents-refund.AmountCents, 0)
		if providerErr != nil {
			refund.Status = domain.RefundStatusFailed
		} else {
			refund.ProviderRefundID = res.RefundID
			refund.Status = res.Status
			p.RefundedCents = min(p.RefundedCents+refund.AmountCents, p.AmountCents)
			if p.RefundedCents >= p.AmountCents {
				p.Status = domain.PaymentStatusRefunded
				p.RefundedAt = &now
			}
		}

		ok, err := q.SettlePaymentRefund(ctx, refund)
		if err != nil {
			return domain.Internal(err, op, "failed to record refund outcome")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}

		p.UpdatedAt = now
		ok, err = q.UpdatePayment(ctx, p, from)
		if err != nil {
			return domain.Internal(err, op, "failed to update payment")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}
		payment = p
		return nil
	})
	return payment, refund, err
}

func checkRefundAmount(op string, p domain.Payment, amount int64) error {
	if amount <= 0 || amount > p.RefundableCents() {
		return domain.ErrInvalidRefundAmount.With(op, map[string]string{
			"amount_cents":     strconv.FormatInt(amount, 10),
			"refundable_cents": strconv.FormatInt(p.RefundableCents(), 10),
		})
	}
	return nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, providerName string, payload []byte, signature string) (*WebhookResult, error) {
	const op = "payment.handle_webhook"
	provider, err := s.provider(op, providerName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())
		}
	}()

	ev, err := provider.ParseWebhook(ctx, payload, signature)
	if errors.Is(err, billing.ErrInvalidWebhookSignature) {
		s.webhookFailed(provider.Name(), "signature")
		return nil, domain.ErrInvalidWebhookSignature.With(op, nil)
	}
	if err != nil {
		s.webhookFailed(provider.Name(), "parse")
		e := domain.ErrProviderFailure.With(op, map[string]string{"provider": provider.Name()})
		e.Err = err
		return nil, e
	}
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(provider.Name(), ev.Type).Inc()
	}

	result := &WebhookResult{EventID: ev.ID, EventType: ev.Type}
	if ev.Type == billing.EventIgnored {
		return result, nil
	}

	now := s.opts.Now()
	var (
		payment         domain.Payment
		lateSuccess     bool
		targetCancelled bool
	)
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		p, err := q.GetPaymentByProviderTx(ctx, provider.Name(), ev.TransactionID)
		if err != nil {
			return notFound(err, domain.ErrPaymentNotFound, op)
		}
		from := p.Status
		payment = p

		switch ev.Type {
		case billing.EventPaymentSucceeded:
			if p.Status == domain.PaymentStatusFailed {
				lateSuccess = true
			}
			if p.Status != domain.PaymentStatusProcessing {
				return nil
			}
			p.Status = domain.PaymentStatusCompleted
			p.ProcessedAt = &now
			p.RequiresAction, p.ActionURL = false, ""

		case billing.EventPaymentFailed:
			if p.Status != domain.PaymentStatusProcessing {
				return nil
			}
			p.Status = domain.PaymentStatusFailed
			p.FailureReason = ev.FailureReason
			if p.FailureReason == "" {
				p.FailureReason = "payment failed at provider"
			}
			p.FailedAt = &now
			p.RequiresAction, p.ActionURL = false, ""

		case billing.EventPaymentRefunded:
			if p.Status != domain.PaymentStatusCompleted && p.Status != domain.PaymentStatusRefunded {
				return nil
			}
			refunded := ev.AmountCents
			if refunded == 0 {
				refunded = p.AmountCents
			}
			// Only the part the ledger knows nothing about is applied here;
			// pending refunds are counted when their own call settles.
			extra := refunded - p.RefundedCents - p.RefundPendingCents
			if extra <= 0 {
				return nil
			}
			p.RefundedCents = min(p.RefundedCents+extra, p.AmountCents-p.RefundPendingCents)
			if p.RefundedCents >= p.AmountCents {
				p.Status = domain.PaymentStatusRefunded
				p.RefundedAt = &now
			}

		default:
			return nil
		}

		p.UpdatedAt = now
		ok, err := q.UpdatePayment(ctx, p, from)
		if err != nil {
			return domain.Internal(err, op, "failed to apply webhook")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}
		if p.Status == domain.PaymentStatusCompleted && from == domain.PaymentStatusProcessing {
			if targetCancelled, err = confirmTarget(ctx, q, op, p, now); err != nil {
				return err
			}
		}
		payment = p
		result.Applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.webhookFailed(provider.Name(), "unmatched")
		}
		return nil, err
	}

	result.PaymentID = &payment.ID
	result.Status = payment.Status

	if lateSuccess {
		s.opts.Logger.WarnContext(ctx, "provider reported success for a failed payment",
			"payment_id", payment.ID,
			"provider", provider.Name(),
			"transaction_id", ev.TransactionID,
		)
		telemetry.CaptureWarning(ctx, "provider reported success for a failed payment", map[string]any{
			"payment_id":     payment.ID.String(),
			"provider":       provider.Name(),
			"transaction_id": ev.TransactionID,
		})
	}
	if targetCancelled {
		s.paidCancelledTarget(ctx, payment)
	}
	if !result.Applied {
		return result, nil
	}

	if ev.Type == billing.EventPaymentRefunded {
		s.opts.publish(ctx, notify.PaymentRefunded, payment.ID.String(), map[string]any{
			"refunded_cents": payment.RefundedCents,
			"full":           payment.Status == domain.PaymentStatusRefunded,
			"source":         "webhook",
		})
	} else {
		s.settledEvent(ctx, payment)
	}
	return result, nil
}

func (s *paymentService) webhookFailed(provider, reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(provider, reason).Inc()
	}
}

func (s *paymentService) FindByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound, "payment.find_by_id")
	}
	return &p, nil
}

func (s *paymentService) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentRefund, error) {
	const op = "payment.list_refunds"
	if _, err := s.store.GetPayment(ctx, paymentID); err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound, op)
	}
	refunds, err := s.store.ListPaymentRefunds(ctx, paymentID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list refunds")
	}
	return refunds, nil
}
