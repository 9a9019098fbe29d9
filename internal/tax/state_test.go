package tax_test

import (
	"context"
	"testing"

	"github.com/dukerupert/motorworks/internal/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(totals ...int64) []tax.LineItem {
	items := make([]tax.LineItem, 0, len(totals))
	for _, total := range totals {
		items = append(items, tax.LineItem{ProductID: uuid.New(), Quantity: 1, UnitPrice: total, TotalPrice: total})
	}
	return items
}

// $100 × 2 at the default 5% is $10, shipping untaxed.
func Test_StateRateCalculator_DefaultRate(t *testing.T) {
	calc, err := tax.NewStateRateCalculator(decimal.RequireFromString("0.05"), nil)
	require.NoError(t, err)

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		ShippingAddress: tax.Address{State: "ZZ"},
		LineItems:       []tax.LineItem{{ProductID: uuid.New(), Quantity: 2, UnitPrice: 10000, TotalPrice: 20000}},
		ShippingCents:   1000,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.TotalTaxCents)
	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "Default Sales Tax", result.Breakdown[0].Name)
	assert.Equal(t, "0.05", result.Breakdown[0].Rate)
}

func Test_StateRateCalculator_StateLookupAndRounding(t *testing.T) {
	calc, err := tax.NewStateRateCalculator(decimal.RequireFromString("0.05"), map[string]decimal.Decimal{
		"co": decimal.RequireFromString("0.029"),
		"WA": decimal.RequireFromString("0.065"),
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		state    string
		subtotal []int64
		expected int64
	}{
		{"colorado lowercase key", "CO", []int64{1000}, 29},
		{"washington half-up", "wa", []int64{1010}, 66},        // 65.65 → 66
		{"washington rounds down", "WA", []int64{1005}, 65},    // 65.325 → 65
		{"unknown state uses default", "TX", []int64{999}, 50}, // 49.95 → 50
		{"multiple lines", "CO", []int64{5000, 5000}, 290},
		{"empty order", "CO", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
				ShippingAddress: tax.Address{State: tt.state},
				LineItems:       lines(tt.subtotal...),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.TotalTaxCents)
		})
	}
}

func Test_NewStateRateCalculator_RejectsInvalidRates(t *testing.T) {
	_, err := tax.NewStateRateCalculator(decimal.RequireFromString("-0.01"), nil)
	assert.ErrorIs(t, err, tax.ErrInvalidTaxRate)

	_, err = tax.NewStateRateCalculator(decimal.RequireFromString("0.05"), map[string]decimal.Decimal{
		"CO": decimal.RequireFromString("1.5"),
	})
	assert.ErrorIs(t, err, tax.ErrInvalidTaxRate)
}
