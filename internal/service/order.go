package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/cache"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/inventory"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/shipping"
	"github.com/dukerupert/motorworks/internal/tax"
	"github.com/dukerupert/motorworks/internal/telemetry"
	"github.com/google/uuid"
)

// OrderService provides business logic for order operations
type OrderService interface {
	// CreateFromCart converts the product lines of a cart into an order,
	// reserving inventory for every line in the same transaction. The cart
	// is left empty, service lines included.
	CreateFromCart(ctx context.Context, params CreateOrderParams) (*OrderResult, error)

	// UpdateStatus moves an order along its status table. Moving to
	// CANCELLED releases inventory like Cancel does.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus, params UpdateStatusParams) (*domain.Order, error)

	// Cancel is the customer-facing cancellation, allowed while the order
	// is PENDING or CONFIRMED.
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*CancelResult, error)

	FindByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	FindByUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]domain.Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]domain.Order, error)

	// ShippingMethods lists the methods CreateFromCart accepts.
	ShippingMethods(ctx context.Context) ([]shipping.Rate, error)
}

// CreateOrderParams is the checkout request for one cart.
type CreateOrderParams struct {
	UserID            uuid.UUID `json:"user_id" validate:"required"`
	CartID            uuid.UUID `json:"cart_id" validate:"required"`
	ShippingAddressID uuid.UUID `json:"shipping_address_id" validate:"required"`
	BillingAddressID  uuid.UUID `json:"billing_address_id" validate:"required"`
	ShippingMethod    string    `json:"shipping_method" validate:"required"`
	Notes             string    `json:"notes" validate:"max=2000"`
}

type OrderResult struct {
	Order       domain.Order `json:"order"`
	OrderNumber string       `json:"order_number"`
}

type UpdateStatusParams struct {
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason"`
}

// CancelResult reports the cancelled order and the amount owed back.
type CancelResult struct {
	Order       domain.Order `json:"order"`
	RefundCents int64        `json:"refund_cents"`
}

type OrderFilter struct {
	Status *domain.OrderStatus
	Page   repository.Page
}

type orderService struct {
	store    repository.Store
	ledger   *inventory.Ledger
	book     address.Book
	tax      tax.Calculator
	shipping shipping.Calculator
	numbers  numberer
	opts     Options
}

// NewOrderService creates a new OrderService instance
func NewOrderService(store repository.Store, book address.Book, taxCalc tax.Calculator, shippingCalc shipping.Calculator, opts Options) OrderService {
	opts = opts.withDefaults()
	return &orderService{
		store:    store,
		ledger:   inventory.NewLedger(store),
		book:     book,
		tax:      taxCalc,
		shipping: shippingCalc,
		numbers:  numberer{q: store, loc: opts.Location, logger: opts.Logger},
		opts:     opts,
	}
}

func (s *orderService) ShippingMethods(ctx context.Context) ([]shipping.Rate, error) {
	rates, err := s.shipping.Rates(ctx)
	if err != nil {
		return nil, domain.Internal(err, "order.shipping_methods", "failed to list shipping methods")
	}
	return rates, nil
}

// CreateFromCart runs the whole conversion as one unit:
//
//  1. lock the cart and validate every product line (itemized on failure)
//  2. reserve stock for every line
//  3. require both address snapshots
//  4. price subtotal, shipping and tax
//  5. insert the order under a fresh daily number
//  6. empty the cart, zero its subtotal and refresh its expiry
//
// Any failure rolls the transaction back, so no reservation outlives it.
// A number collision retries the unit with a new number.
func (s *orderService) CreateFromCart(ctx context.Context, params CreateOrderParams) (*OrderResult, error) {
	const op = "order.create_from_cart"
	if err := validateParams(op, params); err != nil {
		return nil, err
	}

	// Addresses belong to the identity collaborator and are read outside
	// the unit; a missing one is reported after the cart checks.
	shipTo, billTo, addrErr := s.resolveAddresses(ctx, op, params)
	if addrErr != nil && domain.ErrorCode(addrErr) == domain.EINTERNAL {
		return nil, addrErr
	}

	now := s.opts.Now()
	var order domain.Order
	err := s.numbers.withNumber(ctx, op, scopeOrder, orderNumberPrefix, now, func(number string) error {
		return s.store.InTx(ctx, func(q repository.Querier) error {
			o, err := s.convert(ctx, q, op, params, number, shipTo, billTo, addrErr, now)
			if err != nil {
				return err
			}
			order = o
			return nil
		})
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.OrderRejected.WithLabelValues(rejectReason(err)).Inc()
		}
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.Inc()
		telemetry.Business.OrderValue.Observe(float64(order.TotalCents) / 100)
	}
	if err := s.opts.Cache.Delete(ctx, cache.CartKey(params.CartID.String())); err != nil {
		s.opts.Logger.WarnContext(ctx, "cart cache invalidation failed", "cart_id", params.CartID, "error", err)
	}
	s.opts.Logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"total_cents", order.TotalCents,
	)
	s.opts.publish(ctx, notify.OrderCreated, order.ID.String(), map[string]any{
		"order_number": order.OrderNumber,
		"user_id":      order.UserID.String(),
		"total_cents":  order.TotalCents,
	})

	return &OrderResult{Order: order, OrderNumber: order.OrderNumber}, nil
}

func rejectReason(err error) string {
	if r := domain.ErrorReason(err); r != "" {
		return r
	}
	return "internal"
}

func (s *orderService) resolveAddresses(ctx context.Context, op string, params CreateOrderParams) (shipTo, billTo address.Address, err error) {
	ship, err := s.book.GetAddress(ctx, params.UserID, params.ShippingAddressID)
	switch {
	case errors.Is(err, address.ErrAddressNotFound):
		return shipTo, billTo, domain.ErrMissingShippingAddress.With(op, nil)
	case err != nil:
		return shipTo, billTo, domain.Internal(err, op, "failed to resolve shipping address")
	}

	bill, err := s.book.GetAddress(ctx, params.UserID, params.BillingAddressID)
	switch {
	case errors.Is(err, address.ErrAddressNotFound):
		return shipTo, billTo, domain.ErrMissingBillingAddress.With(op, nil)
	case err != nil:
		return shipTo, billTo, domain.Internal(err, op, "failed to resolve billing address")
	}

	shipTo, billTo = *ship, *bill
	shipTo.Type, billTo.Type = "shipping", "billing"

	// Snapshots are normalized so tax lookups see canonical state codes.
	problems := make(map[string]string)
	for _, a := range []*address.Address{&shipTo, &billTo} {
		res, err := s.opts.Addresses.Validate(ctx, *a)
		if err != nil {
			return shipTo, billTo, domain.Internal(err, op, "failed to validate address")
		}
		for _, e := range res.Errors {
			problems[a.Type+"."+e.Field] = e.Message
		}
		if res.NormalizedAddress != nil {
			typ := a.Type
			*a = *res.NormalizedAddress
			a.Type = typ
		}
	}
	if len(problems) > 0 {
		return shipTo, billTo, domain.ErrInvalidAddress.With(op, problems)
	}
	return shipTo, billTo, nil
}

func (s *orderService) convert(ctx context.Context, q repository.Querier, op string, params CreateOrderParams,
	number string, shipTo, billTo address.Address, addrErr error, now time.Time,
) (domain.Order, error) {
	cart, err := q.GetCartForUpdate(ctx, params.CartID)
	if err != nil {
		return domain.Order{}, notFound(err, domain.ErrCartNotFound, op)
	}
	if cart.UserID == nil || *cart.UserID != params.UserID {
		return domain.Order{}, domain.ErrCartNotFound.With(op, nil)
	}

	items, err := q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return domain.Order{}, domain.Internal(err, op, "failed to load cart items")
	}

	lines, err := s.validateLines(ctx, q, op, items)
	if err != nil {
		return domain.Order{}, err
	}

	ledger := s.ledger.WithQuerier(q)
	for _, l := range lines {
		if err := ledger.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			return domain.Order{}, internal(err, op, "failed to reserve stock")
		}
	}

	if addrErr != nil {
		return domain.Order{}, addrErr
	}

	order := domain.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		UserID:          params.UserID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: shipTo,
		BillingAddress:  billTo,
		ShippingMethod:  params.ShippingMethod,
		Notes:           params.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.price(ctx, op, &order, lines); err != nil {
		return domain.Order{}, err
	}

	if err := q.InsertOrder(ctx, order); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintOrderNumber) {
			return domain.Order{}, errNumberTaken
		}
		return domain.Order{}, domain.Internal(err, op, "failed to insert order")
	}

	if err := q.DeleteCartItems(ctx, cart.ID); err != nil {
		return domain.Order{}, domain.Internal(err, op, "failed to clear converted cart")
	}
	if _, err := recalculate(ctx, q, cart.ID, ptr(now.Add(domain.CartTTL)), now); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// orderLine is a validated product line ready to snapshot.
type orderLine struct {
	domain.OrderItem
	Category string
}

// validateLines checks every product line and collects all failures rather
// than stopping at the first. The reported reason is INSUFFICIENT_STOCK
// only when stock is the sole problem.
func (s *orderService) validateLines(ctx context.Context, q repository.Querier, op string, items []domain.CartItem) ([]orderLine, error) {
	var (
		lines     []orderLine
		details   = make(map[string]string)
		stockOnly = true
	)
	for _, it := range items {
		if it.ProductID == nil {
			continue
		}
		key := it.ProductID.String()

		p, err := q.GetProduct(ctx, *it.ProductID)
		if errors.Is(err, repository.ErrNoRows) {
			details[key] = "product no longer exists"
			stockOnly = false
			continue
		}
		if err != nil {
			return nil, domain.Internal(err, op, "failed to load product")
		}

		switch {
		case !p.Purchasable():
			details[key] = fmt.Sprintf("product is %s", p.Status)
			stockOnly = false
		case p.TrackInventory && p.StockQuantity < it.Quantity:
			details[key] = fmt.Sprintf("requested %d, available %d", it.Quantity, p.StockQuantity)
		}

		lines = append(lines, orderLine{
			OrderItem: domain.OrderItem{
				ID:             uuid.New(),
				ProductID:      p.ID,
				ProductName:    p.Name,
				SKU:            p.SKU,
				UnitPriceCents: p.PriceCents,
				Quantity:       it.Quantity,
				LineTotalCents: p.PriceCents * int64(it.Quantity),
			},
			Category: p.Category,
		})
	}

	if len(details) > 0 {
		if stockOnly {
			return nil, domain.ErrInsufficientStock.With(op, details)
		}
		return nil, domain.ErrItemUnavailable.With(op, details)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart.With(op, nil)
	}
	return lines, nil
}

// price fills the monetary breakdown. Discounts are not applied.
func (s *orderService) price(ctx context.Context, op string, o *domain.Order, lines []orderLine) error {
	shipLines := make([]shipping.Line, 0, len(lines))
	taxLines := make([]tax.LineItem, 0, len(lines))
	for _, l := range lines {
		o.Items = append(o.Items, l.OrderItem)
		o.SubtotalCents += l.LineTotalCents
		shipLines = append(shipLines, shipping.Line{
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
			Category:       l.Category,
		})
		taxLines = append(taxLines, tax.LineItem{
			ProductID:   l.ProductID,
			Description: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPriceCents,
			TotalPrice:  l.LineTotalCents,
			TaxCategory: l.Category,
		})
	}

	quote, err := s.shipping.Quote(ctx, shipping.QuoteParams{
		Method: o.ShippingMethod,
		Lines:  shipLines,
		Destination: shipping.Destination{
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
	})
	if errors.Is(err, shipping.ErrUnknownMethod) {
		return ErrUnknownShippingMethod.With(op, map[string]string{"shipping_method": o.ShippingMethod})
	}
	if err != nil {
		return domain.Internal(err, op, "failed to quote shipping")
	}
	o.ShippingMethod = quote.Method
	o.ShippingCents = quote.CostCents

	taxed, err := s.tax.CalculateTax(ctx, tax.TaxParams{
		ShippingAddress: tax.Address{
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		LineItems:     taxLines,
		ShippingCents: o.ShippingCents,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to calculate tax")
	}
	o.TaxCents = taxed.TotalTaxCents

	o.DiscountCents = 0
	o.TotalCents = o.SubtotalCents + o.TaxCents + o.ShippingCents - o.DiscountCents
	return nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus, params UpdateStatusParams) (*domain.Order, error) {
	const op = "order.update_status"
	if !to.Valid() {
		return nil, ErrValidation.With(op, map[string]string{"status": fmt.Sprintf("unknown status %q", to)})
	}
	if to == domain.OrderStatusCancelled {
		res, err := s.cancel(ctx, op, orderID, params.Reason, func(from domain.OrderStatus) error {
			return domain.CheckOrderTransition(op, from, domain.OrderStatusCancelled)
		})
		if err != nil {
			return nil, err
		}
		return &res.Order, nil
	}

	now := s.opts.Now()
	var (
		order domain.Order
		from  domain.OrderStatus
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		o, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, domain.ErrOrderNotFound, op)
		}
		from = o.Status
		if err := domain.CheckOrderTransition(op, o.Status, to); err != nil {
			return err
		}

		arg := repository.UpdateOrderStatusParams{ID: o.ID, From: o.Status, To: to, Now: now}
		switch to {
		case domain.OrderStatusShipped:
			if params.TrackingNumber == "" {
				return ErrTrackingNumberRequired.With(op, nil)
			}
			arg.TrackingNumber = &params.TrackingNumber
			arg.ShippedAt = &now
		case domain.OrderStatusDelivered:
			arg.DeliveredAt = &now
		}

		ok, err := q.UpdateOrderStatus(ctx, arg)
		if err != nil {
			return domain.Internal(err, op, "failed to update order status")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}

		order, err = q.GetOrder(ctx, o.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitioned(ctx, order, from)
	return &order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*CancelResult, error) {
	const op = "order.cancel"
	return s.cancel(ctx, op, orderID, reason, func(from domain.OrderStatus) error {
		if !from.Cancellable() {
			return domain.ErrOrderNotCancellable.With(op, map[string]string{"status": string(from)})
		}
		return nil
	})
}

// cancel moves the order to CANCELLED when check accepts its current status
// and releases every reserved line in the same transaction. The status
// update is compare-and-set, so a concurrent cancellation cannot release
// stock twice.
func (s *orderService) cancel(ctx context.Context, op string, orderID uuid.UUID, reason string, check func(from domain.OrderStatus) error) (*CancelResult, error) {
	now := s.opts.Now()
	var (
		order domain.Order
		from  domain.OrderStatus
	)
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		o, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, domain.ErrOrderNotFound, op)
		}
		from = o.Status
		if err := check(o.Status); err != nil {
			return err
		}

		ok, err := q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
			ID:           o.ID,
			From:         o.Status,
			To:           domain.OrderStatusCancelled,
			CancelReason: reason,
			CancelledAt:  &now,
			Now:          now,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to cancel order")
		}
		if !ok {
			return domain.ErrConcurrentUpdate.With(op, nil)
		}

		ledger := s.ledger.WithQuerier(q)
		for _, it := range o.Items {
			if err := ledger.Release(ctx, it.ProductID, it.Quantity); err != nil {
				return internal(err, op, "failed to release stock")
			}
		}

		order, err = q.GetOrder(ctx, o.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitioned(ctx, order, from)
	s.opts.publish(ctx, notify.OrderCancelled, order.ID.String(), map[string]any{
		"order_number": order.OrderNumber,
		"refund_cents": order.TotalCents,
		"reason":       reason,
	})
	return &CancelResult{Order: order, RefundCents: order.TotalCents}, nil
}

func (s *orderService) transitioned(ctx context.Context, o domain.Order, from domain.OrderStatus) {
	if telemetry.Business != nil {
		telemetry.Business.OrderTransitions.WithLabelValues(string(from), string(o.Status)).Inc()
	}
	s.opts.Logger.InfoContext(ctx, "order status changed",
		"order_id", o.ID,
		"from", from,
		"to", o.Status,
	)
	s.opts.publish(ctx, notify.OrderStatusChanged, o.ID.String(), map[string]any{
		"order_number": o.OrderNumber,
		"from":         string(from),
		"to":           string(o.Status),
	})
}

func (s *orderService) FindByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, domain.ErrOrderNotFound, "order.find_by_id")
	}
	return &o, nil
}

func (s *orderService) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	o, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, notFound(err, domain.ErrOrderNotFound, "order.find_by_number")
	}
	return &o, nil
}

func (s *orderService) FindByUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]domain.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, userID, page.Normalize())
	if err != nil {
		return nil, domain.Internal(err, "order.find_by_user", "failed to list orders")
	}
	return orders, nil
}

func (s *orderService) FindAll(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	const op = "order.find_all"
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrValidation.With(op, map[string]string{"status": fmt.Sprintf("unknown status %q", *filter.Status)})
	}
	orders, err := s.store.ListOrders(ctx, repository.ListOrdersParams{Status: filter.Status, Page: filter.Page.Normalize()})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	return orders, nil
}
