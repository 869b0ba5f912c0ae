// Package pricing computes the checkout price breakdown.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Line is one cart line priced from the stored unit cost.
type Line struct {
	UnitCost decimal.Decimal
	Quantity int
}

// Breakdown is the amount charged for an order.
type Breakdown struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ServiceFee    decimal.Decimal `json:"serviceFee"`
	ProcessingFee decimal.Decimal `json:"processingFee"`
	Total         decimal.Decimal `json:"total"`
}

// Calculator applies a percentage service fee and a flat processing fee.
type Calculator struct {
	serviceFeeRate decimal.Decimal
	processingFee  decimal.Decimal
}

func NewCalculator(serviceFeeRate, processingFee decimal.Decimal) *Calculator {
	return &Calculator{serviceFeeRate: serviceFeeRate, processingFee: processingFee}
}

// Default uses a 5% service fee and a 2.99 processing fee.
func Default() *Calculator {
	return NewCalculator(decimal.RequireFromString("0.05"), decimal.RequireFromString("2.99"))
}

// Price sums the lines and adds fees. Free carts carry no fees.
func (c *Calculator) Price(lines []Line) Breakdown {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)

	b := Breakdown{
		Subtotal:      subtotal,
		ServiceFee:    decimal.Zero,
		ProcessingFee: decimal.Zero,
	}
	if subtotal.IsPositive() {
		b.ServiceFee = subtotal.Mul(c.serviceFeeRate).Round(2)
		b.ProcessingFee = c.processingFee.Round(2)
	}
	b.Total = b.Subtotal.Add(b.ServiceFee).Add(b.ProcessingFee)
	return b
}

// Matches reports whether a client-quoted total equals the computed one
// to the cent.
func (b Breakdown) Matches(quoted decimal.Decimal) bool {
	return quoted.Round(2).Equal(b.Total)
}
