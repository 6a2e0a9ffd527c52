// Package money provides fixed-point monetary helpers shared by the
// transfer core. Amounts are represented as shopspring decimals with at
// most two fractional digits; rounding follows the half-even settlement
// convention.
package money

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by balances and
// transfer amounts.
const Scale = 2

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCurrencyCode reports whether code is a well-formed ISO 4217
// currency code (three uppercase letters).
func ValidCurrencyCode(code string) bool {
	return currencyCodeRe.MatchString(code)
}

// ValidScale reports whether amount carries at most two fractional digits.
func ValidScale(amount decimal.Decimal) bool {
	return amount.Exponent() >= -Scale || amount.Equal(amount.Truncate(Scale))
}

// RoundHalfEven rounds amount to two fractional digits using banker's
// rounding (ties resolved toward the even cent). This is the agreed
// settlement convention for converted amounts and must stay
// bit-reproducible.
func RoundHalfEven(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(Scale)
}
