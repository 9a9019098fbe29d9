package tax

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// StateRateCalculator applies a per-state sales tax rate to the merchandise
// subtotal, falling back to a default rate for unknown states. Shipping is
// not taxed. Amounts are rounded half-up to the cent.
type StateRateCalculator struct {
	defaultRate decimal.Decimal
	rates       map[string]decimal.Decimal
}

// NewStateRateCalculator creates a calculator. Rates are fractions, e.g.
// 0.05 for 5%. State keys are matched case-insensitively.
func NewStateRateCalculator(defaultRate decimal.Decimal, rates map[string]decimal.Decimal) (*StateRateCalculator, error) {
	if err := validateRate(defaultRate); err != nil {
		return nil, err
	}
	normalized := make(map[string]decimal.Decimal, len(rates))
	for state, r := range rates {
		if err := validateRate(r); err != nil {
			return nil, err
		}
		normalized[strings.ToUpper(strings.TrimSpace(state))] = r
	}
	return &StateRateCalculator{defaultRate: defaultRate, rates: normalized}, nil
}

func validateRate(r decimal.Decimal) error {
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidTaxRate
	}
	return nil
}

// RateFor returns the rate for a state and the name reported in the breakdown.
func (c *StateRateCalculator) RateFor(state string) (decimal.Decimal, string) {
	key := strings.ToUpper(strings.TrimSpace(state))
	if r, ok := c.rates[key]; ok {
		return r, key
	}
	return c.defaultRate, "Default Sales Tax"
}

// CalculateTax computes subtotal × rate(state).
func (c *StateRateCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	rate, name := c.RateFor(params.ShippingAddress.State)
	amount := decimal.NewFromInt(params.SubtotalCents()).Mul(rate).Round(0).IntPart()

	return &TaxResult{
		TotalTaxCents: amount,
		Breakdown: []TaxBreakdown{{
			Jurisdiction: "state",
			Name:         name,
			Rate:         rate.String(),
			AmountCents:  amount,
		}},
	}, nil
}
