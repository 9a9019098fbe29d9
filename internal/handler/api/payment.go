package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/service"
)

// PaymentHandler handles payment routes. Ownership of a payment follows the
// order or booking it settles.
type PaymentHandler struct {
	paymentService service.PaymentService
	orderService   service.OrderService
	bookingService service.BookingService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(
	paymentService service.PaymentService,
	orderService service.OrderService,
	bookingService service.BookingService,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		orderService:   orderService,
		bookingService: bookingService,
	}
}

type createPaymentRequest struct {
	OrderID        *uuid.UUID       `json:"order_id"`
	BookingID      *uuid.UUID       `json:"booking_id"`
	AmountCents    int64            `json:"amount_cents"`
	Method         string           `json:"method"`
	Provider       string           `json:"provider"`
	BillingAddress *address.Address `json:"billing_address"`
}

type processPaymentRequest struct {
	Token          string           `json:"token"`
	BillingAddress *address.Address `json:"billing_address"`
	PayerEmail     string           `json:"payer_email"`
}

type refundRequest struct {
	AmountCents *int64 `json:"amount_cents"`
	Reason      string `json:"reason"`
}

// Create handles POST /api/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := h.authorizeTarget(r.Context(), req.OrderID, req.BookingID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	payment, err := h.paymentService.Create(r.Context(), service.CreatePaymentParams{
		OrderID:        req.OrderID,
		BookingID:      req.BookingID,
		AmountCents:    req.AmountCents,
		Method:         req.Method,
		Provider:       req.Provider,
		BillingAddress: req.BillingAddress,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, payment)
}

// Process handles POST /api/payments/{id}/process. A declined charge is a
// 200 with status FAILED, not an error.
func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.charge(w, r, h.paymentService.Process)
}

// Retry handles POST /api/payments/{id}/retry
func (h *PaymentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.charge(w, r, h.paymentService.Retry)
}

type chargeFunc func(ctx context.Context, paymentID uuid.UUID, params service.ProcessPaymentParams) (*domain.Payment, error)

func (h *PaymentHandler) charge(w http.ResponseWriter, r *http.Request, fn chargeFunc) {
	payment, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req processPaymentRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := fn(r.Context(), payment.ID, service.ProcessPaymentParams{
		Token:          req.Token,
		BillingAddress: req.BillingAddress,
		PayerEmail:     req.PayerEmail,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}

// Refund handles POST /api/payments/{id}/refund (staff only). An omitted
// amount refunds the remaining balance.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req refundRequest
	if err := decodeOptional(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.paymentService.Refund(r.Context(), paymentID, service.RefundPaymentParams{
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}

// Get handles GET /api/payments/{id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, payment)
}

// Refunds handles GET /api/payments/{id}/refunds
func (h *PaymentHandler) Refunds(w http.ResponseWriter, r *http.Request) {
	payment, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	refunds, err := h.paymentService.ListRefunds(r.Context(), payment.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"refunds": refunds})
}

func (h *PaymentHandler) load(r *http.Request) (*domain.Payment, error) {
	paymentID, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	payment, err := h.paymentService.FindByID(r.Context(), paymentID)
	if err != nil {
		return nil, err
	}
	if domain.IsStaff(r.Context()) {
		return payment, nil
	}
	if err := h.authorizeTarget(r.Context(), payment.OrderID, payment.BookingID); err != nil {
		return nil, domain.ErrPaymentNotFound.With("payment.get", nil)
	}
	return payment, nil
}

// authorizeTarget checks the actor owns the order or booking being paid.
// Validation of the target combination is left to the service.
func (h *PaymentHandler) authorizeTarget(ctx context.Context, orderID, bookingID *uuid.UUID) error {
	if domain.IsStaff(ctx) {
		return nil
	}
	if orderID != nil {
		order, err := h.orderService.FindByID(ctx, *orderID)
		if err != nil {
			return err
		}
		if !canAccess(ctx, order.UserID) {
			return domain.ErrOrderNotFound.With("payment.authorize", nil)
		}
	}
	if bookingID != nil {
		booking, err := h.bookingService.FindByID(ctx, *bookingID)
		if err != nil {
			return err
		}
		if !canAccess(ctx, booking.UserID) {
			return domain.ErrBookingNotFound.With("payment.authorize", nil)
		}
	}
	return nil
}
