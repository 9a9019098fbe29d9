package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/service"
)

// BookingHandler handles appointment and availability routes
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

type createBookingRequest struct {
	ServiceID uuid.UUID           `json:"service_id"`
	Date      string              `json:"date"`
	Hour      int                 `json:"hour"`
	AddOnIDs  []uuid.UUID         `json:"add_on_ids"`
	Vehicle   *domain.VehicleInfo `json:"vehicle"`
	Notes     string              `json:"notes"`
}

type bookingStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type blockSlotRequest struct {
	Date   string `json:"date"`
	Hour   *int   `json:"hour"`
	Reason string `json:"reason"`
}

// Availability handles GET /api/services/{id}/availability?from=&to=
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	to := from
	if s := q.Get("to"); s != "" {
		if to, err = parseDate("to", s); err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
	}

	days, err := h.bookingService.GetAvailability(r.Context(), serviceID, from, to)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"service_id": serviceID,
		"days":       days,
	})
}

// Create handles POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.bookingService.Create(r.Context(), service.CreateBookingParams{
		UserID:    domain.UserIDFromContext(r.Context()),
		ServiceID: req.ServiceID,
		Date:      date,
		Hour:      req.Hour,
		AddOnIDs:  req.AddOnIDs,
		Vehicle:   req.Vehicle,
		Notes:     req.Notes,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, result)
}

// List handles GET /api/bookings
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookings, err := h.bookingService.FindByUser(ctx, domain.UserIDFromContext(ctx), pageFromQuery(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// Get handles GET /api/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, booking)
}

// GetByNumber handles GET /api/booking-numbers/{number}
func (h *BookingHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookingService.FindByNumber(r.Context(), r.PathValue("number"))
	if err == nil && !canAccess(r.Context(), booking.UserID) {
		err = domain.ErrBookingNotFound.With("booking.get", nil)
	}
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, booking)
}

// UpdateStatus handles POST /api/bookings/{id}/status (staff only)
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req bookingStatusRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	to := domain.BookingStatus(strings.ToUpper(req.Status))
	booking, err := h.bookingService.UpdateStatus(r.Context(), bookingID, to, req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, booking)
}

// Cancel handles POST /api/bookings/{id}/cancel. Staff cancellations bypass
// the customer cutoff.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	booking, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req cancelRequest
	if err := decodeOptional(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cancel := h.bookingService.Cancel
	if domain.IsStaff(r.Context()) {
		cancel = h.bookingService.AdminCancel
	}
	result, err := cancel(r.Context(), booking.ID, req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}

// BlockSlot handles POST /api/services/{id}/blocks (staff only)
func (h *BookingHandler) BlockSlot(w http.ResponseWriter, r *http.Request) {
	serviceID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req blockSlotRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	block, err := h.bookingService.BlockSlot(r.Context(), service.BlockSlotParams{
		ServiceID: serviceID,
		Date:      date,
		Hour:      req.Hour,
		Reason:    req.Reason,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, block)
}

// UnblockSlot handles DELETE /api/blocks/{id} (staff only)
func (h *BookingHandler) UnblockSlot(w http.ResponseWriter, r *http.Request) {
	blockID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := h.bookingService.UnblockSlot(r.Context(), blockID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) load(r *http.Request) (*domain.Booking, error) {
	bookingID, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	booking, err := h.bookingService.FindByID(r.Context(), bookingID)
	if err != nil {
		return nil, err
	}
	if !canAccess(r.Context(), booking.UserID) {
		return nil, domain.ErrBookingNotFound.With("booking.get", nil)
	}
	return booking, nil
}
