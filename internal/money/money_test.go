package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidCurrencyCode(t *testing.T) {
	valid := []string{"USD", "EUR", "TZS", "JPY"}
	for _, code := range valid {
		assert.True(t, ValidCurrencyCode(code), "expected %s to be valid", code)
	}

	invalid := []string{"", "usd", "US", "USDT", "U$D", "12A"}
	for _, code := range invalid {
		assert.False(t, ValidCurrencyCode(code), "expected %s to be invalid", code)
	}
}

func TestValidScale(t *testing.T) {
	cases := []struct {
		amount string
		want   bool
	}{
		{"100", true},
		{"100.5", true},
		{"100.50", true},
		{"100.555", false},
		{"0.01", true},
		{"0.001", false},
		// Trailing zeros beyond two places are still the same value.
		{"100.500", true},
	}

	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.amount)
		if err != nil {
			t.Fatalf("bad test input %q: %v", tc.amount, err)
		}
		assert.Equal(t, tc.want, ValidScale(d), "amount %s", tc.amount)
	}
}

func TestRoundHalfEven(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		// Ties go to the even cent.
		{"100.005", "100"},
		{"100.015", "100.02"},
		{"100.025", "100.02"},
		{"100.035", "100.04"},
		// Non-ties round to nearest.
		{"110.004", "110"},
		{"110.006", "110.01"},
		// Exact values are untouched.
		{"100.5", "100.5"},
		{"390", "390"},
	}

	for _, tc := range cases {
		in, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("bad test input %q: %v", tc.in, err)
		}
		got := RoundHalfEven(in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"RoundHalfEven(%s) = %s, want %s", tc.in, got, tc.want)
	}
}
