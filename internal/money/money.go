package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits carried by every stored amount.
const Scale = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrAmountTooLarge  = errors.New("amount exceeds the maximum supported value")
)

// MaxAmount is the largest magnitude a numeric(18,2) column stores.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// Tolerance is the allowed difference when matching an amount against a
// configured one.
var Tolerance = decimal.New(1, -Scale)

// Parse reads a decimal string with at most two fraction digits.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if value.Exponent() < -Scale && !value.Equal(value.Round(Scale)) {
		return decimal.Zero, ErrTooManyDecimals
	}
	value = value.Round(Scale)
	if !WithinLimit(value) {
		return decimal.Zero, ErrAmountTooLarge
	}
	return value, nil
}

// ParsePositive is Parse plus a > 0 check.
func ParsePositive(input string) (decimal.Decimal, error) {
	value, err := Parse(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}

// Normalize rounds to the storage scale using banker's rounding.
func Normalize(value decimal.Decimal) decimal.Decimal {
	return value.RoundBank(Scale)
}

// WithinTolerance reports whether |a - b| <= Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// WithinLimit reports whether |value| <= MaxAmount.
func WithinLimit(value decimal.Decimal) bool {
	return value.Abs().LessThanOrEqual(MaxAmount)
}

// HasValidScale reports whether value carries no more than two fraction digits.
func HasValidScale(value decimal.Decimal) bool {
	return value.Equal(value.Truncate(Scale))
}
