package tax

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidTaxRate is returned for a rate outside [0, 1].
var ErrInvalidTaxRate = errors.New("tax: rate must be between 0 and 1")

// Calculator computes the tax owed on an order, in cents.
type Calculator interface {
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	ShippingAddress Address
	LineItems       []LineItem
	ShippingCents   int64
}

// SubtotalCents sums the line totals.
func (p TaxParams) SubtotalCents() int64 {
	var total int64
	for _, li := range p.LineItems {
		total += li.TotalPrice
	}
	return total
}

// Address represents a physical address for tax purposes.
type Address struct {
	State      string
	PostalCode string
	Country    string
}

// LineItem represents a single item being taxed.
type LineItem struct {
	ProductID   uuid.UUID
	Description string
	Quantity    int
	UnitPrice   int64
	TotalPrice  int64
	TaxCategory string
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	TotalTaxCents int64
	Breakdown     []TaxBreakdown
}

// TaxBreakdown represents tax for a single jurisdiction.
type TaxBreakdown struct {
	Jurisdiction string // "state"
	Name         string // e.g., "CO" or "Default Sales Tax"
	Rate         string // decimal string, e.g. "0.05"
	AmountCents  int64
}
