package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Coupon struct {
	Code     string
	Discount decimal.Decimal
}

// NormalizeCouponCode returns the stored (upper-cased) form of a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
