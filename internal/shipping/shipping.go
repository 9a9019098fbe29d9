package shipping

import (
	"context"
	"errors"
)

var (
	// ErrUnknownMethod is returned for a method with no configured rate.
	ErrUnknownMethod = errors.New("shipping: unknown method")
	// ErrNoRates is returned when no methods are configured at all.
	ErrNoRates = errors.New("shipping: no methods configured")
)

// Calculator prices shipping for an order.
type Calculator interface {
	// Quote returns the shipping cost for the chosen method.
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)

	// Rates lists the methods a customer can choose from.
	Rates(ctx context.Context) ([]Rate, error)
}

// QuoteParams describes the shipment being priced.
type QuoteParams struct {
	Method      string
	Lines       []Line
	Destination Destination
}

// Line is one product line of the shipment.
type Line struct {
	UnitPriceCents int64
	Quantity       int
	Category       string
}

// Destination carries the parts of an address that affect pricing.
type Destination struct {
	State      string
	PostalCode string
	Country    string
}

// Quote is a priced shipping option.
type Quote struct {
	Method    string
	CostCents int64
	Free      bool
	Reason    string // why shipping is free, if it is
	DaysMin   int
	DaysMax   int
}

// Rate represents a selectable shipping method.
type Rate struct {
	ServiceName string `json:"service_name"`
	ServiceCode string `json:"service_code"`
	CostCents   int64  `json:"cost_cents"`
	DaysMin     int    `json:"days_min"`
	DaysMax     int    `json:"days_max"`
}
