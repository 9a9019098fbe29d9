package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/service"
)

// CartHandler handles all cart routes
type CartHandler struct {
	cartService service.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

type addItemRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
	ServiceID *uuid.UUID `json:"service_id"`
	Quantity  int        `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// owner picks the authenticated user's cart, or the anonymous session's.
func owner(r *http.Request) (service.CartOwner, error) {
	if domain.IsAuthenticated(r.Context()) {
		id := domain.UserIDFromContext(r.Context())
		return service.CartOwner{UserID: &id}, nil
	}
	return sessionOwner(r)
}

func sessionOwner(r *http.Request) (service.CartOwner, error) {
	sid := r.Header.Get(SessionIDHeader)
	if sid == "" {
		return service.CartOwner{}, domain.Unauthorized("", "Authentication or an "+SessionIDHeader+" header is required")
	}
	if len(sid) > maxSessionIDLength {
		return service.CartOwner{}, domain.Invalid("", SessionIDHeader+" is too long")
	}
	return service.CartOwner{SessionID: sid}, nil
}

// current resolves the caller's cart, creating it on first access.
func (h *CartHandler) current(r *http.Request) (*service.CartSummary, error) {
	o, err := owner(r)
	if err != nil {
		return nil, err
	}
	return h.cartService.GetOrCreate(r.Context(), o)
}

// Get handles GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.current(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.current(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ref := domain.ItemRef{ProductID: req.ProductID, ServiceID: req.ServiceID}
	summary, err := h.cartService.AddItem(r.Context(), cart.Cart.ID, ref, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// UpdateItem handles PUT /api/cart/items/{id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req updateItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.current(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.UpdateItem(r.Context(), cart.Cart.ID, itemID, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// RemoveItem handles DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.current(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.RemoveItem(r.Context(), cart.Cart.ID, itemID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cart, err := h.current(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.cartService.Clear(r.Context(), cart.Cart.ID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Merge handles POST /api/cart/merge. The session cart named by the
// X-Session-ID header is folded into the authenticated user's cart.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	session, err := sessionOwner(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.Merge(r.Context(), session.SessionID, domain.UserIDFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

// Convert handles POST /api/cart/convert. The session cart becomes the
// authenticated user's cart; it fails if the user already has one.
func (h *CartHandler) Convert(w http.ResponseWriter, r *http.Request) {
	session, err := sessionOwner(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()
	cart, err := h.cartService.GetOrCreate(ctx, session)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	userID := domain.UserIDFromContext(ctx)
	if err := h.cartService.ConvertToUser(ctx, cart.Cart.ID, userID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.cartService.Summary(ctx, cart.Cart.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}
