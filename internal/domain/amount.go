package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

var (
	// MinAmount and MaxAmount bound a top-up, both inclusive.
	MinAmount = decimal.NewFromInt(100)
	MaxAmount = decimal.NewFromInt(50000)

	ErrAmountFormat = errors.New("amount format")
	ErrAmountRange  = errors.New("amount out of range")

	ErrAmountTooSmall = fmt.Errorf("%w: below minimum", ErrAmountRange)
	ErrAmountTooLarge = fmt.Errorf("%w: above maximum", ErrAmountRange)
)

const amountScale = 2

var minorPerUnit = decimal.NewFromInt(100)

// ParseAmount reads a user-typed amount. A comma works as the decimal separator
// and at most two significant fractional digits are accepted; trailing zeros are fine.
func ParseAmount(text string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	normalized = strings.ReplaceAll(normalized, " ", "")

	amount, err := decimal.NewFromString(normalized)
	if err != nil || normalized == "" || strings.ContainsAny(normalized, "eE") {
		return decimal.Zero, apperrors.NewValidationError("invalid amount format").WithCause(ErrAmountFormat)
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return decimal.Zero, apperrors.NewValidationError("invalid amount format").WithCause(ErrAmountFormat)
	}

	if amount.LessThan(MinAmount) {
		return decimal.Zero, apperrors.NewValidationError("amount out of range").WithCause(ErrAmountTooSmall)
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, apperrors.NewValidationError("amount out of range").WithCause(ErrAmountTooLarge)
	}

	return amount.Round(amountScale), nil
}

// ToMinor converts an amount to kopecks for storage.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(minorPerUnit).Round(0).IntPart()
}

// FromMinor converts stored kopecks back to an amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -amountScale)
}

// FormatAmount renders an amount with two decimals, e.g. "150.50".
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(amountScale)
}
