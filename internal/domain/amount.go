package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// AmountDecimalPlaces is the monetary precision of budgets and transactions
	AmountDecimalPlaces = 2

	// MaxDescriptionLength is the maximum number of characters in a transaction description
	MaxDescriptionLength = 255
)

// DefaultAmountCeiling is the largest amount accepted for a single purchase
// unless the deployment configures another ceiling.
var DefaultAmountCeiling = decimal.NewFromInt(10000)

// ParseAmount parses a wire amount and validates it against ceiling.
// The fractional digit check applies to the amount as written, so "100.120" is rejected.
func ParseAmount(raw string, ceiling decimal.Decimal) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, NewInvalidAmountError("amount is required")
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, NewInvalidAmountError("amount must be a valid number")
	}

	if err := ValidateAmount(amount, ceiling); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

// ValidateAmount checks 0 < amount <= ceiling with at most two decimal places
func ValidateAmount(amount decimal.Decimal, ceiling decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewInvalidAmountError("amount must be greater than 0")
	}

	if amount.GreaterThan(ceiling) {
		return NewInvalidAmountError("amount cannot exceed " + ceiling.StringFixed(AmountDecimalPlaces))
	}

	if !HasMonetaryPrecision(amount) {
		return NewInvalidAmountError("amount cannot have more than 2 decimal places")
	}

	return nil
}

// HasMonetaryPrecision reports whether d is written with at most two fractional digits
func HasMonetaryPrecision(d decimal.Decimal) bool {
	return d.Exponent() >= -AmountDecimalPlaces
}

// NormalizeDescription trims the description and checks its length
func NormalizeDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", NewInvalidDescriptionError("description is required")
	}

	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", NewInvalidDescriptionError("description cannot exceed 255 characters")
	}

	return description, nil
}
