package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPrice(t *testing.T) {
	tests := []struct {
		name                           string
		lines                          []Line
		subtotal, service, proc, total string
	}{
		{
			name:     "single line",
			lines:    []Line{{UnitCost: d("25.00"), Quantity: 2}},
			subtotal: "50", service: "2.5", proc: "2.99", total: "55.49",
		},
		{
			name:     "mixed cart rounds service fee to cents",
			lines:    []Line{{UnitCost: d("19.99"), Quantity: 3}, {UnitCost: d("75.50"), Quantity: 1}},
			subtotal: "135.47", service: "6.77", proc: "2.99", total: "145.23",
		},
		{
			name:     "free tickets carry no fees",
			lines:    []Line{{UnitCost: d("0"), Quantity: 4}},
			subtotal: "0", service: "0", proc: "0", total: "0",
		},
	}

	calc := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Price(tt.lines)
			assert.True(t, b.Subtotal.Equal(d(tt.subtotal)), "subtotal %s", b.Subtotal)
			assert.True(t, b.ServiceFee.Equal(d(tt.service)), "service fee %s", b.ServiceFee)
			assert.True(t, b.ProcessingFee.Equal(d(tt.proc)), "processing fee %s", b.ProcessingFee)
			assert.True(t, b.Total.Equal(d(tt.total)), "total %s", b.Total)
		})
	}
}

func TestMatches(t *testing.T) {
	b := Default().Price([]Line{{UnitCost: d("10.00"), Quantity: 1}})

	assert.True(t, b.Matches(d("13.49")))
	assert.True(t, b.Matches(d("13.490")))
	assert.False(t, b.Matches(d("13.48")))
}

func TestCustomRates(t *testing.T) {
	calc := NewCalculator(d("0.10"), d("1.00"))
	b := calc.Price([]Line{{UnitCost: d("12.34"), Quantity: 1}})

	assert.True(t, b.ServiceFee.Equal(d("1.23")))
	assert.True(t, b.Total.Equal(d("14.57")))
}
