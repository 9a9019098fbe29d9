package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/service"
)

// OrderHandler handles checkout and order routes
type OrderHandler struct {
	orderService service.OrderService
	cartService  service.CartService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService service.OrderService, cartService service.CartService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		cartService:  cartService,
	}
}

type createOrderRequest struct {
	ShippingAddressID uuid.UUID `json:"shipping_address_id"`
	BillingAddressID  uuid.UUID `json:"billing_address_id"`
	ShippingMethod    string    `json:"shipping_method"`
	Notes             string    `json:"notes"`
}

type orderStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/orders. The authenticated user's cart is
// converted; its service lines stay behind.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	userID := domain.UserIDFromContext(ctx)
	cart, err := h.cartService.GetOrCreate(ctx, service.CartOwner{UserID: &userID})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.orderService.CreateFromCart(ctx, service.CreateOrderParams{
		UserID:            userID,
		CartID:            cart.Cart.ID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		ShippingMethod:    req.ShippingMethod,
		Notes:             req.Notes,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, result)
}

// List handles GET /api/orders. Customers see their own orders; staff see
// all orders, optionally filtered by ?status=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageFromQuery(r)

	var (
		orders []domain.Order
		err    error
	)
	if domain.IsStaff(ctx) {
		filter := service.OrderFilter{Page: page}
		if s := r.URL.Query().Get("status"); s != "" {
			status := domain.OrderStatus(strings.ToUpper(s))
			if !status.Valid() {
				handler.ErrorResponse(w, r, domain.NewValidationError("", "status", "is not a known order status"))
				return
			}
			filter.Status = &status
		}
		orders, err = h.orderService.FindAll(ctx, filter)
	} else {
		orders, err = h.orderService.FindByUser(ctx, domain.UserIDFromContext(ctx), page)
	}
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// ShippingMethods handles GET /api/shipping-methods
func (h *OrderHandler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	rates, err := h.orderService.ShippingMethods(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"methods": rates})
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}

// GetByNumber handles GET /api/order-numbers/{number}
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.FindByNumber(r.Context(), r.PathValue("number"))
	if err == nil && !canAccess(r.Context(), order.UserID) {
		err = domain.ErrOrderNotFound.With("order.get", nil)
	}
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}

// UpdateStatus handles POST /api/orders/{id}/status (staff only)
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req orderStatusRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID, domain.OrderStatus(strings.ToUpper(req.Status)), service.UpdateStatusParams{
		TrackingNumber: req.TrackingNumber,
		Reason:         req.Reason,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.load(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req cancelRequest
	if err := decodeOptional(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.orderService.Cancel(r.Context(), order.ID, req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}

// load fetches the order in the path, hiding orders the actor does not own.
func (h *OrderHandler) load(r *http.Request) (*domain.Order, error) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	order, err := h.orderService.FindByID(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if !canAccess(r.Context(), order.UserID) {
		return nil, domain.ErrOrderNotFound.With("order.get", nil)
	}
	return order, nil
}
