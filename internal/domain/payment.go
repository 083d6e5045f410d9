package domain

import (
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

var hundred = decimal.NewFromInt(100)

// Totals is the monetary breakdown of an order. Total always equals
// Subtotal - DiscountAmount and 0 <= DiscountAmount <= Subtotal.
type Totals struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
}

// ComputeTotals prices items and applies a percentage discount. The percentage
// is clamped to [0, 100]; amounts are rounded to minor units.
func ComputeTotals(items []OrderItem, discountPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	subtotal = subtotal.Round(2)

	pct := decimal.Max(decimal.Zero, decimal.Min(discountPercent, hundred))
	discount := subtotal.Mul(pct).Div(hundred).Round(2)
	discount = decimal.Max(decimal.Zero, decimal.Min(discount, subtotal))

	return Totals{
		Subtotal:        subtotal,
		DiscountPercent: pct,
		DiscountAmount:  discount,
		Total:           subtotal.Sub(discount),
	}
}

// MinorUnits converts an amount to the gateway's integer minor currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
