package shipping

import (
	"context"
	"slices"
	"strings"
)

// FlatRate defines a single flat-rate shipping option.
type FlatRate struct {
	ServiceName string
	ServiceCode string
	CostCents   int64
	DaysMin     int
	DaysMax     int
}

// FreeShippingPolicy waives shipping for bulky or high-value shipments.
type FreeShippingPolicy struct {
	// UnitPriceThresholdCents: any line priced strictly above ships free.
	UnitPriceThresholdCents int64
	// HeavyCategories ship free (freight is arranged separately).
	HeavyCategories []string
}

// DefaultRates are the standard/express/overnight flat rates.
var DefaultRates = []FlatRate{
	{ServiceName: "Standard Shipping", ServiceCode: "standard", CostCents: 1000, DaysMin: 5, DaysMax: 7},
	{ServiceName: "Express Shipping", ServiceCode: "express", CostCents: 2500, DaysMin: 2, DaysMax: 3},
	{ServiceName: "Overnight Shipping", ServiceCode: "overnight", CostCents: 5000, DaysMin: 1, DaysMax: 1},
}

// DefaultFreeShipping waives shipping above $1000 per unit or for heavy parts.
var DefaultFreeShipping = FreeShippingPolicy{
	UnitPriceThresholdCents: 100000,
	HeavyCategories:         []string{"vehicle", "engine", "transmission", "body_panel"},
}

// PolicyCalculator prices shipping by flat rate per method, subject to a
// free-shipping policy.
type PolicyCalculator struct {
	rates  []FlatRate
	policy FreeShippingPolicy
}

// NewPolicyCalculator creates a calculator over the given rates and policy.
func NewPolicyCalculator(rates []FlatRate, policy FreeShippingPolicy) *PolicyCalculator {
	return &PolicyCalculator{rates: rates, policy: policy}
}

// Bulky reports whether any line qualifies the shipment for free shipping,
// and why.
func (p FreeShippingPolicy) Bulky(lines []Line) (bool, string) {
	for _, l := range lines {
		if p.UnitPriceThresholdCents > 0 && l.UnitPriceCents > p.UnitPriceThresholdCents {
			return true, "high_value"
		}
		if slices.Contains(p.HeavyCategories, strings.ToLower(l.Category)) {
			return true, "heavy_item"
		}
	}
	return false, ""
}

func (c *PolicyCalculator) rate(method string) (FlatRate, bool) {
	method = strings.ToLower(strings.TrimSpace(method))
	for _, r := range c.rates {
		if r.ServiceCode == method {
			return r, true
		}
	}
	return FlatRate{}, false
}

// Quote validates the method and applies the free-shipping policy.
func (c *PolicyCalculator) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	r, ok := c.rate(params.Method)
	if !ok {
		return nil, ErrUnknownMethod
	}
	q := &Quote{
		Method:    r.ServiceCode,
		CostCents: r.CostCents,
		DaysMin:   r.DaysMin,
		DaysMax:   r.DaysMax,
	}
	if free, reason := c.policy.Bulky(params.Lines); free {
		q.CostCents = 0
		q.Free = true
		q.Reason = reason
	}
	return q, nil
}

// Rates converts flat rates to Rate objects.
func (c *PolicyCalculator) Rates(ctx context.Context) ([]Rate, error) {
	if len(c.rates) == 0 {
		return nil, ErrNoRates
	}
	result := make([]Rate, len(c.rates))
	for i, fr := range c.rates {
		result[i] = Rate{
			ServiceName: fr.ServiceName,
			ServiceCode: fr.ServiceCode,
			CostCents:   fr.CostCents,
			DaysMin:     fr.DaysMin,
			DaysMax:     fr.DaysMax,
		}
	}
	return result, nil
}
