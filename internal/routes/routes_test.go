package routes_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/availability"
	"github.com/dukerupert/motorworks/internal/billing"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler/api"
	"github.com/dukerupert/motorworks/internal/handler/webhook"
	"github.com/dukerupert/motorworks/internal/memstore"
	"github.com/dukerupert/motorworks/internal/middleware"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/router"
	"github.com/dukerupert/motorworks/internal/routes"
	"github.com/dukerupert/motorworks/internal/service"
	"github.com/dukerupert/motorworks/internal/shipping"
	"github.com/dukerupert/motorworks/internal/tax"
)

const webhookSecret = "whsec_routes"

// Monday 2026-03-02 08:00 UTC.
var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type app struct {
	t      *testing.T
	store  *memstore.Store
	mux    *router.Router
	mock   *billing.MockProvider
	ready  error
	userID uuid.UUID
	other  uuid.UUID
	staff  uuid.UUID
}

func newApp(t *testing.T) *app {
	t.Helper()
	a := &app{
		t:      t,
		store:  memstore.New(),
		mock:   billing.NewMockProvider("mock", webhookSecret),
		userID: uuid.New(),
		other:  uuid.New(),
		staff:  uuid.New(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := service.Options{
		Logger:   logger,
		Location: time.UTC,
		Now:      func() time.Time { return now },
		Events:   notify.NewRecorder(),
	}
	flat, err := tax.NewStateRateCalculator(decimal.RequireFromString("0.05"), nil)
	require.NoError(t, err)

	carts := service.NewCartService(a.store, opts)
	orders := service.NewOrderService(a.store, repository.NewAddressBook(a.store), flat,
		shipping.NewPolicyCalculator(shipping.DefaultRates, shipping.DefaultFreeShipping), opts)
	bookings := service.NewBookingService(a.store, availability.NewEngine(time.UTC), opts)
	payments := service.NewPaymentService(a.store, billing.NewRegistry(a.mock), opts)

	a.mux = router.New(middleware.RequestID, middleware.WithActor)
	routes.RegisterAPIRoutes(a.mux, routes.APIDeps{
		CartHandler:    api.NewCartHandler(carts),
		OrderHandler:   api.NewOrderHandler(orders, carts),
		BookingHandler: api.NewBookingHandler(bookings),
		PaymentHandler: api.NewPaymentHandler(payments, orders, bookings),
	})
	routes.RegisterWebhookRoutes(a.mux, routes.WebhookDeps{
		PaymentHandler: webhook.NewPaymentHandler(payments),
	})
	routes.RegisterSystemRoutes(a.mux, routes.SystemDeps{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		Ready:   func(*http.Request) error { return a.ready },
	})
	return a
}

type call struct {
	method  string
	path    string
	body    any
	user    uuid.UUID
	staff   bool
	session string
}

func (a *app) do(c call) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.user != uuid.Nil {
		req.Header.Set(middleware.UserIDHeader, c.user.String())
	}
	if c.staff {
		req.Header.Set(middleware.UserRoleHeader, domain.RoleStaff)
	}
	if c.session != "" {
		req.Header.Set(api.SessionIDHeader, c.session)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorReason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode[struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}](t, rec)
	return env.Error.Reason
}

func (a *app) product(price int64, stock int) domain.Product {
	p := domain.Product{
		ID:             uuid.New(),
		SKU:            "SKU-" + uuid.NewString()[:8],
		Name:           "Oil filter",
		PriceCents:     price,
		Category:       "filters",
		Status:         domain.ProductStatusActive,
		TrackInventory: true,
		StockQuantity:  stock,
	}
	a.store.PutProduct(p)
	return p
}

// service is a one-hour service open 09:00-17:00 every weekday.
func (a *app) service() domain.Service {
	svc := domain.Service{
		ID:            uuid.New(),
		Name:          "Oil change",
		PriceCents:    6000,
		DurationHours: 1,
		Schedule: domain.Schedule{
			OpenWeekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			HourRanges:   []domain.HourRange{{Start: 9, End: 17}},
		},
		MaxAdvanceDays: 30,
		Active:         true,
	}
	a.store.PutService(svc)
	return svc
}

func (a *app) address(userID uuid.UUID) uuid.UUID {
	return a.store.PutAddress(userID, address.Address{
		FullName:     "Sam Ortiz",
		AddressLine1: "400 Service Rd",
		City:         "Bozeman",
		State:        "MT",
		PostalCode:   "59715",
		Country:      "US",
	})
}

// placeOrder fills the user's cart and checks it out.
func (a *app) placeOrder(userID uuid.UUID) domain.Order {
	a.t.Helper()
	p := a.product(2500, 10)
	rec := a.do(call{method: http.MethodPost, path: "/api/cart/items", user: userID,
		body: map[string]any{"product_id": p.ID, "quantity": 2}})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	addr := a.address(userID)
	rec = a.do(call{method: http.MethodPost, path: "/api/orders", user: userID, body: map[string]any{
		"shipping_address_id": addr,
		"billing_address_id":  addr,
		"shipping_method":     "standard",
	}})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[service.OrderResult](a.t, rec).Order
}

func TestCart_AnonymousSession(t *testing.T) {
	a := newApp(t)
	p := a.product(1500, 5)

	rec := a.do(call{method: http.MethodPost, path: "/api/cart/items", session: "sess-1",
		body: map[string]any{"product_id": p.ID, "quantity": 3}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[service.CartSummary](t, rec)
	assert.Equal(t, int64(4500), summary.SubtotalCents)
	assert.Equal(t, 3, summary.ItemCount)

	rec = a.do(call{method: http.MethodGet, path: "/api/cart", session: "sess-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, summary.Cart.ID, decode[service.CartSummary](t, rec).Cart.ID)

	rec = a.do(call{method: http.MethodGet, path: "/api/cart"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_MergeRequiresActor(t *testing.T) {
	a := newApp(t)
	p := a.product(1000, 5)

	rec := a.do(call{method: http.MethodPost, path: "/api/cart/items", session: "sess-2",
		body: map[string]any{"product_id": p.ID, "quantity": 1}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/api/cart/merge", session: "sess-2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/api/cart/merge", session: "sess-2", user: a.userID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[service.CartSummary](t, rec).ItemCount)
}

func TestOrders_OwnershipAndStaffRoutes(t *testing.T) {
	a := newApp(t)
	order := a.placeOrder(a.userID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	path := "/api/orders/" + order.ID.String()

	rec := a.do(call{method: http.MethodGet, path: path, user: a.userID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: path, user: a.other})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: "/api/order-numbers/" + order.OrderNumber, user: a.userID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: path + "/status", user: a.userID,
		body: map[string]any{"status": "confirmed"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: path + "/status", user: a.staff, staff: true,
		body: map[string]any{"status": "confirmed"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderStatusConfirmed, decode[domain.Order](t, rec).Status)

	rec = a.do(call{method: http.MethodGet, path: "/api/orders", user: a.other})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Orders []domain.Order `json:"orders"`
	}](t, rec).Orders)
}

func TestOrders_CancelWithoutBody(t *testing.T) {
	a := newApp(t)
	order := a.placeOrder(a.userID)

	rec := a.do(call{method: http.MethodPost, path: "/api/orders/" + order.ID.String() + "/cancel", user: a.userID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestOrders_CreateWithEmptyCart(t *testing.T) {
	a := newApp(t)
	addr := a.address(a.userID)

	rec := a.do(call{method: http.MethodPost, path: "/api/orders", user: a.userID, body: map[string]any{
		"shipping_address_id": addr,
		"billing_address_id":  addr,
		"shipping_method":     "standard",
	}})
	assert.GreaterOrEqual(t, rec.Code, 400)
	assert.Less(t, rec.Code, 500)
}

func TestOrders_ShippingMethodsArePublic(t *testing.T) {
	a := newApp(t)

	rec := a.do(call{method: http.MethodGet, path: "/api/shipping-methods"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	methods := decode[struct {
		Methods []shipping.Rate `json:"methods"`
	}](t, rec).Methods
	require.Len(t, methods, len(shipping.DefaultRates))
	assert.Equal(t, "standard", methods[0].ServiceCode)
}

func TestBookings_AvailabilityAndSlotConflict(t *testing.T) {
	a := newApp(t)
	svc := a.service()

	// Wednesday 2026-03-04
	rec := a.do(call{method: http.MethodGet,
		path: "/api/services/" + svc.ID.String() + "/availability?from=2026-03-04&to=2026-03-04"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	days := decode[struct {
		Days []availability.DaySlots `json:"days"`
	}](t, rec).Days
	require.Len(t, days, 1)
	assert.Contains(t, days[0].Hours, 10)

	book := map[string]any{"service_id": svc.ID, "date": "2026-03-04", "hour": 10}
	rec = a.do(call{method: http.MethodPost, path: "/api/bookings", user: a.userID, body: book})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decode[service.BookingResult](t, rec).Booking

	rec = a.do(call{method: http.MethodPost, path: "/api/bookings", user: a.other, body: book})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ReasonSlotUnavailable, errorReason(t, rec))

	rec = a.do(call{method: http.MethodGet, path: "/api/bookings/" + booking.ID.String(), user: a.other})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(call{method: http.MethodGet,
		path: "/api/services/" + svc.ID.String() + "/availability?from=2026-03-04"})
	require.Equal(t, http.StatusOK, rec.Code)
	days = decode[struct {
		Days []availability.DaySlots `json:"days"`
	}](t, rec).Days
	require.Len(t, days, 1)
	assert.NotContains(t, days[0].Hours, 10)
}

func TestBookings_BadDateIsFieldError(t *testing.T) {
	a := newApp(t)
	svc := a.service()

	rec := a.do(call{method: http.MethodPost, path: "/api/bookings", user: a.userID,
		body: map[string]any{"service_id": svc.ID, "date": "04/03/2026", "hour": 10}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[struct {
		Error struct {
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}](t, rec)
	assert.Contains(t, env.Error.Fields, "date")
}

func TestBookings_StaffBlocksSlot(t *testing.T) {
	a := newApp(t)
	svc := a.service()
	blocks := "/api/services/" + svc.ID.String() + "/blocks"
	body := map[string]any{"date": "2026-03-05", "hour": 9, "reason": "lift maintenance"}

	rec := a.do(call{method: http.MethodPost, path: blocks, user: a.userID, body: body})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: blocks, user: a.staff, staff: true, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	block := decode[domain.SlotBlock](t, rec)

	rec = a.do(call{method: http.MethodPost, path: "/api/bookings", user: a.userID,
		body: map[string]any{"service_id": svc.ID, "date": "2026-03-05", "hour": 9}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(call{method: http.MethodDelete, path: "/api/blocks/" + block.ID.String(), user: a.staff, staff: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPayments_ChargeAndRefund(t *testing.T) {
	a := newApp(t)
	order := a.placeOrder(a.userID)

	rec := a.do(call{method: http.MethodPost, path: "/api/payments", user: a.other,
		body: map[string]any{"order_id": order.ID, "method": "card", "provider": "mock"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/api/payments", user: a.userID,
		body: map[string]any{"order_id": order.ID, "method": "card", "provider": "mock"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decode[domain.Payment](t, rec)
	assert.Equal(t, order.TotalCents, payment.AmountCents)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)

	path := "/api/payments/" + payment.ID.String()
	rec = a.do(call{method: http.MethodPost, path: path + "/process", user: a.userID,
		body: map[string]any{"token": billing.MockTokenSuccess}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.PaymentStatusCompleted, decode[domain.Payment](t, rec).Status)

	rec = a.do(call{method: http.MethodPost, path: path + "/refund", user: a.userID,
		body: map[string]any{"amount_cents": 500}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: path + "/refund", user: a.staff, staff: true,
		body: map[string]any{"amount_cents": 500, "reason": "damaged box"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refund := decode[service.PaymentRefundResult](t, rec)
	assert.Equal(t, int64(500), refund.Payment.RefundedCents)
	assert.Equal(t, domain.PaymentStatusCompleted, refund.Payment.Status)

	rec = a.do(call{method: http.MethodGet, path: path + "/refunds", user: a.userID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Refunds []domain.PaymentRefund `json:"refunds"`
	}](t, rec).Refunds, 1)

	rec = a.do(call{method: http.MethodGet, path: path, user: a.other})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayments_DeclineIsNotAnError(t *testing.T) {
	a := newApp(t)
	order := a.placeOrder(a.userID)

	rec := a.do(call{method: http.MethodPost, path: "/api/payments", user: a.userID,
		body: map[string]any{"order_id": order.ID, "method": "card", "provider": "mock"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	payment := decode[domain.Payment](t, rec)

	rec = a.do(call{method: http.MethodPost, path: "/api/payments/" + payment.ID.String() + "/process", user: a.userID,
		body: map[string]any{"token": billing.MockTokenDeclined}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	failed := decode[domain.Payment](t, rec)
	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.FailureReason)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	a := newApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mock", bytes.NewReader([]byte(`{"id":"evt_1","type":"payment.succeeded"}`)))
	req.Header.Set(webhook.DefaultSignatureHeader, "00ff")
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ReasonInvalidSignature, errorReason(t, rec))
}

func TestSystemRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)

	a.ready = errors.New("database unreachable")
	rec = a.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}
