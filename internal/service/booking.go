package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/motorworks/internal/availability"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/telemetry"
	"github.com/google/uuid"
)

// MaxAvailabilityDays caps the date range of one availability query.
const MaxAvailabilityDays = 62

// Cancellation windows, in hours before the appointment.
const (
	cancelCutoffHours  = 24
	fullRefundHours    = 48
	partialRefundShare = 50
)

// BookingService provides business logic for service appointments
type BookingService interface {
	// GetAvailability lists open start hours per day in [from, to].
	GetAvailability(ctx context.Context, serviceID uuid.UUID, from, to time.Time) ([]availability.DaySlots, error)

	// Create claims a slot. Under concurrent requests for the same slot
	// exactly one succeeds; the others get TIME_SLOT_UNAVAILABLE.
	Create(ctx context.Context, params CreateBookingParams) (*BookingResult, error)

	// UpdateStatus moves a booking along its status table. Moving to
	// CANCELLED applies the customer cancellation rules.
	UpdateStatus(ctx context.Context, bookingID uuid.UUID, to domain.BookingStatus, reason string) (*domain.Booking, error)

	// Cancel is the customer cancellation: more than 24 hours ahead only,
	// refunding 100% beyond 48 hours and 50% otherwise.
	Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (*BookingCancelResult, error)

	// AdminCancel is the operator override. It ignores the 24 hour cutoff
	// and refunds nothing inside it.
	AdminCancel(ctx context.Context, bookingID uuid.UUID, reason string) (*BookingCancelResult, error)

	BlockSlot(ctx context.Context, params BlockSlotParams) (*domain.SlotBlock, error)
	UnblockSlot(ctx context.Context, blockID uuid.UUID) error

	FindByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	FindByNumber(ctx context.Context, bookingNumber string) (*domain.Booking, error)
	FindByUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]domain.Booking, error)
}

type CreateBookingParams struct {
	UserID    uuid.UUID           `json:"user_id" validate:"required"`
	ServiceID uuid.UUID           `json:"service_id" validate:"required"`
	Date      time.Time           `json:"date" validate:"required"`
	Hour      int                 `json:"hour" validate:"min=0,max=23"`
	AddOnIDs  []uuid.UUID         `json:"add_on_ids"`
	Vehicle   *domain.VehicleInfo `json:"vehicle"`
	Notes     string              `json:"notes" validate:"max=2000"`
}

type BookingResult struct {
	Booking       domain.Booking `json:"booking"`
	BookingNumber string         `json:"booking_number"`
}

// BookingCancelResult reports the refund tier applied to a cancellation.
type BookingCancelResult struct {
	Booking       domain.Booking `json:"booking"`
	RefundPercent int            `json:"refund_percent"`
	RefundCents   int64          `json:"refund_cents"`
}

// BlockSlotParams blocks one hour, or the whole day when Hour is nil.
type BlockSlotParams struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Hour      *int      `json:"hour" validate:"omitempty,min=0,max=23"`
	Reason    string    `json:"reason" validate:"max=500"`
}

type bookingService struct {
	store   repository.Store
	engine  *availability.Engine
	numbers numberer
	opts    Options
}

// NewBookingService creates a new BookingService instance
func NewBookingService(store repository.Store, engine *availability.Engine, opts Options) BookingService {
	opts = opts.withDefaults()
	if engine == nil {
		engine = availability.NewEngine(opts.Location)
	}
	return &bookingService{
		store:   store,
		engine:  engine,
		numbers: numberer{q: store, loc: engine.Location(), logger: opts.Logger},
		opts:    opts,
	}
}

func (s *bookingService) GetAvailability(ctx context.Context, serviceID uuid.UUID, from, to time.Time) ([]availability.DaySlots, error) {
	const op = "booking.get_availability"
	from, to = domain.CivilDate(from), domain.CivilDate(to)
	if to.Before(from) || to.Sub(from) >= MaxAvailabilityDays*24*time.Hour {
		return nil, ErrInvalidDateRange.With(op, map[string]string{
			"from": from.Format(time.DateOnly),
			"to":   to.Format(time.DateOnly),
		})
	}

	svc, err := s.activeService(ctx, s.store, op, serviceID)
	if err != nil {
		return nil, err
	}

	rng := repository.DateRangeParams{ServiceID: svc.ID, From: from, To: to}
	bookings, err := s.store.ListActiveBookings(ctx, rng)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load bookings")
	}
	blocks, err := s.store.ListSlotBlocks(ctx, rng)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load slot blocks")
	}

	slots := s.engine.Compute(svc, bookings, blocks, from, to, s.opts.Now())
	if slots == nil {
		slots = []availability.DaySlots{}
	}
	return slots, nil
}

func (s *bookingService) activeService(ctx context.Context, q repository.Querier, op string, id uuid.UUID) (domain.Service, error) {
	svc, err := q.GetService(ctx, id)
	if err != nil {
		return svc, notFound(err, domain.ErrServiceNotFound, op)
	}
	if !svc.Active {
		return svc, domain.ErrItemUnavailable.With(op, map[string]string{svc.ID.String(): "service is not active"})
	}
	return svc, nil
}

// Create validates the window, prices add-ons, then claims the slot in one
// transaction. The availability check inside the transaction is only an
// optimistic pre-check; the partial unique slot index decides the winner.
func (s *bookingService) Create(ctx context.Context, params CreateBookingParams) (*BookingResult, error) {
	const op = "booking.create"
	if err := validateParams(op, params); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	svc, err := s.activeService(ctx, s.store, op, params.ServiceID)
	if err != nil {
		return nil, err
	}

	day := domain.CivilDate(params.Date)
	if !s.engine.InWindow(svc, day, now) {
		return nil, domain.ErrInvalidBookingDate.With(op, map[string]string{
			"date":             day.Format(time.DateOnly),
			"min_advance_days": strconv.Itoa(svc.MinAdvanceDays),
			"max_advance_days": strconv.Itoa(svc.MaxAdvanceDays),
		})
	}

	addOns, err := s.resolveAddOns(ctx, op, svc, params.AddOnIDs)
	if err != nil {
		return nil, err
	}

	var booking domain.Booking
	err = s.numbers.withNumber(ctx, op, scopeBooking, bookingNumberPrefix, now, func(number string) error {
		return s.store.InTx(ctx, func(q repository.Querier) error {
			b, err := s.claim(ctx, q, op, svc, params, day, addOns, number, now)
			if err != nil {
				return err
			}
			booking = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.BookingsCreated.Inc()
	}
	s.opts.Logger.InfoContext(ctx, "booking created",
		"booking_id", booking.ID,
		"booking_number", booking.BookingNumber,
		"service_id", booking.ServiceID,
		"date", day.Format(time.DateOnly),
		"hour", booking.ScheduledHour,
	)
	s.opts.publish(ctx, notify.BookingCreated, booking.ID.String(), map[string]any{
		"booking_number": booking.BookingNumber,
		"user_id":        booking.UserID.String(),
		"service_id":     booking.ServiceID.String(),
		"date":           day.Format(time.DateOnly),
		"hour":           booking.ScheduledHour,
		"total_cents":    booking.TotalCents,
	})

	return &BookingResult{Booking: booking, BookingNumber: booking.BookingNumber}, nil
}

func (s *bookingService) resolveAddOns(ctx context.Context, op string, svc domain.Service, ids []uuid.UUID) ([]domain.ServiceAddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	available, err := s.store.ListServiceAddOns(ctx, svc.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load add-ons")
	}
	byID := make(map[uuid.UUID]domain.ServiceAddOn, len(available))
	for _, a := range available {
		byID[a.ID] = a
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]domain.ServiceAddOn, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		switch {
		case !ok:
			return nil, domain.ErrInvalidAddOn.With(op, map[string]string{id.String(): "not offered for this service"})
		case seen[id]:
			return nil, domain.ErrInvalidAddOn.With(op, map[string]string{id.String(): "listed more than once"})
		}
		seen[id] = true
		out = append(out, a)
	}
	return out, nil
}

func (s *bookingService) claim(ctx context.Context, q repository.Querier, op string, svc domain.Service,
	params CreateBookingParams, day time.Time, addOns []domain.ServiceAddOn, number string, now time.Time,
) (domain.Booking, error) {
	rng := repository.DateRangeParams{ServiceID: svc.ID, From: day, To: day}
	bookings, err := q.ListActiveBookings(ctx, rng)
	if err != nil {
		return domain.Booking{}, domain.Internal(err, op, "failed to load bookings")
	}
	blocks, err := q.ListSlotBlocks(ctx, rng)
	if err != nil {
		return domain.Booking{}, domain.Internal(err, op, "failed to load slot blocks")
	}
	if !availability.Contains(s.engine.Compute(svc, bookings, blocks, day, day, now), day, params.Hour) {
		return domain.Booking{}, s.slotTaken(op, "precheck", day, params.Hour)
	}

	b := domain.Booking{
		ID:             uuid.New(),
		BookingNumber:  number,
		UserID:         params.UserID,
		ServiceID:      svc.ID,
		ScheduledDate:  day,
		ScheduledHour:  params.Hour,
		DurationHours:  svc.DurationHours,
		BasePriceCents: svc.PriceCents,
		Status:         domain.BookingStatusPending,
		Vehicle:        params.Vehicle,
		Notes:          params.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, a := range addOns {
		b.AddOns = append(b.AddOns, domain.BookingAddOn{
			ID:         uuid.New(),
			BookingID:  b.ID,
			AddOnID:    a.ID,
			Name:       a.Name,
			PriceCents: a.PriceCents,
		})
		b.AddOnsCents += a.PriceCents
	}
	b.TotalCents = b.BasePriceCents + b.AddOnsCents

	err = q.InsertBooking(ctx, b)
	switch {
	case repository.IsUniqueViolation(err, repository.ConstraintBookingSlot):
		return domain.Booking{}, s.slotTaken(op, "constraint", day, params.Hour)
	case repository.IsUniqueViolation(err, repository.ConstraintBookingNumber):
		return domain.Booking{}, errNumberTaken
	case err != nil:
		return domain.Booking{}, domain.Internal(err, op, "failed to insert booking")
	}
	return b, nil
}

func (s *bookingService) slotTaken(op, stage string, day time.Time, hour int) error {
	if telemetry.Business != nil {
		telemetry.Business.SlotConflicts.WithLabelValues(stage).Inc()
	}
	return domain.ErrTimeSlotUnavailable.With(op, map[string]string{
		"date": day.Format(time.DateOnly),
		"hour": strconv.Itoa(hour),
	})
}

func (s *bookingService) UpdateStatus(ctx context.Context, bookingID uuid.UUID, to domain.BookingStatus, reason string) (*domain.Booking, error) {
	const op = "booking.update_status"
	if !to.Valid() {
		return nil, ErrValidation.With(op, map[string]string{"status": fmt.Sprintf("unknown status %q", to)})
	}
	if to == domain.BookingStatusCancelled {
		res, err := s.Cancel(ctx, bookingID, reason)
		if err != nil {
			return nil, err
		}
		return &res.Booking, nil
	}

	now := s.opts.Now()
	var (
		booking domain.Booking
		from    domain.BookingStatus
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		b, err := q.GetBooking(ctx, bookingID)
		if err != nil {
			return notFound(err, domain.ErrBookingNotFound, op)
		}
		from = b.Status
		if err := domain.CheckBookingTransition(op, b.Status, to); err != nil {
			return err
		}

		arg := repository.UpdateBookingStatusParams{ID: b.ID, From: b.Status, To: to, Now: now}
		switch to {
		case domain.BookingStatusConfirmed:
			arg.ConfirmedAt = &now
		case domain.BookingStatusCompleted:
			arg.CompletedAt = &now
		}

		ok, err := q.UpdateBookingStatus(ctx, arg)
		if err != nil {
			return domain.Internal(err, op, "failed to update booking status")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}

		booking, err = q.GetBooking(ctx, b.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to reload booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitioned(ctx, booking, from)
	return &booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (*BookingCancelResult, error) {
	const op = "booking.cancel"
	return s.cancel(ctx, op, bookingID, reason, domain.RoleCustomer, func(hours float64) (int, error) {
		switch {
		case hours <= cancelCutoffHours:
			return 0, domain.ErrBookingNotCancellable.With(op, map[string]string{
				"hours_until": strconv.FormatFloat(hours, 'f', 1, 64),
			})
		case hours > fullRefundHours:
			return 100, nil
		default:
			return partialRefundShare, nil
		}
	})
}

func (s *bookingService) AdminCancel(ctx context.Context, bookingID uuid.UUID, reason string) (*BookingCancelResult, error) {
	return s.cancel(ctx, "booking.admin_cancel", bookingID, reason, domain.RoleStaff, func(hours float64) (int, error) {
		switch {
		case hours > fullRefundHours:
			return 100, nil
		case hours > cancelCutoffHours:
			return partialRefundShare, nil
		default:
			return 0, nil
		}
	})
}

// cancel frees the slot. tier maps the hours left before the appointment
// to a refund percentage or rejects the cancellation.
func (s *bookingService) cancel(ctx context.Context, op string, bookingID uuid.UUID, reason, actor string, tier func(hours float64) (int, error)) (*BookingCancelResult, error) {
	now := s.opts.Now()
	var (
		booking domain.Booking
		from    domain.BookingStatus
		percent int
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		b, err := q.GetBooking(ctx, bookingID)
		if err != nil {
			return notFound(err, domain.ErrBookingNotFound, op)
		}
		from = b.Status
		if !b.Status.Cancellable() {
			return domain.ErrBookingNotCancellable.With(op, map[string]string{"status": string(b.Status)})
		}

		percent, err = tier(s.engine.HoursUntil(b, now))
		if err != nil {
			return err
		}

		ok, err := q.UpdateBookingStatus(ctx, repository.UpdateBookingStatusParams{
			ID:                 b.ID,
			From:               b.Status,
			To:                 domain.BookingStatusCancelled,
			CancelledAt:        &now,
			CancellationReason: reason,
			Now:                now,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to cancel booking")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}

		booking, err = q.GetBooking(ctx, b.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to reload booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &BookingCancelResult{
		Booking:       booking,
		RefundPercent: percent,
		RefundCents:   booking.TotalCents * int64(percent) / 100,
	}

	if telemetry.Business != nil {
		telemetry.Business.BookingsCancelled.WithLabelValues(strconv.Itoa(percent), actor).Inc()
	}
	s.transitioned(ctx, booking, from)
	s.opts.publish(ctx, notify.BookingCancelled, booking.ID.String(), map[string]any{
		"booking_number": booking.BookingNumber,
		"refund_percent": res.RefundPercent,
		"refund_cents":   res.RefundCents,
		"reason":         reason,
		"actor":          actor,
	})
	return res, nil
}

func (s *bookingService) transitioned(ctx context.Context, b domain.Booking, from domain.BookingStatus) {
	s.opts.Logger.InfoContext(ctx, "booking status changed",
		"booking_id", b.ID,
		"from", from,
		"to", b.Status,
	)
	s.opts.publish(ctx, notify.BookingStatusChanged, b.ID.String(), map[string]any{
		"booking_number": b.BookingNumber,
		"from":           string(from),
		"to":             string(b.Status),
	})
}

func (s *bookingService) BlockSlot(ctx context.Context, params BlockSlotParams) (*domain.SlotBlock, error) {
	const op = "booking.block_slot"
	if err := validateParams(op, params); err != nil {
		return nil, err
	}
	if _, err := s.store.GetService(ctx, params.ServiceID); err != nil {
		return nil, notFound(err, domain.ErrServiceNotFound, op)
	}

	block := domain.SlotBlock{
		ID:        uuid.New(),
		ServiceID: params.ServiceID,
		Date:      domain.CivilDate(params.Date),
		Hour:      params.Hour,
		Reason:    params.Reason,
		CreatedAt: s.opts.Now(),
	}
	if err := s.store.InsertSlotBlock(ctx, block); err != nil {
		return nil, domain.Internal(err, op, "failed to block slot")
	}
	return &block, nil
}

func (s *bookingService) UnblockSlot(ctx context.Context, blockID uuid.UUID) error {
	if err := s.store.DeleteSlotBlock(ctx, blockID); err != nil {
		return notFound(err, ErrSlotBlockNotFound, "booking.unblock_slot")
	}
	return nil
}

func (s *bookingService) FindByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, domain.ErrBookingNotFound, "booking.find_by_id")
	}
	return &b, nil
}

func (s *bookingService) FindByNumber(ctx context.Context, bookingNumber string) (*domain.Booking, error) {
	b, err := s.store.GetBookingByNumber(ctx, bookingNumber)
	if err != nil {
		return nil, notFound(err, domain.ErrBookingNotFound, "booking.find_by_number")
	}
	return &b, nil
}

func (s *bookingService) FindByUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]domain.Booking, error) {
	bookings, err := s.store.ListBookingsByUser(ctx, userID, page.Normalize())
	if err != nil {
		return nil, domain.Internal(err, "booking.find_by_user", "failed to list bookings")
	}
	return bookings, nil
}
