package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget is a named, time-boxed allowance owned by a team.
// RemainingAmount only decreases, and only through the ledger.
type Budget struct {
	ID              uuid.UUID
	TeamID          uuid.UUID
	Name            string
	TotalAmount     decimal.Decimal // fixed at creation
	RemainingAmount decimal.Decimal // 0 <= RemainingAmount <= TotalAmount
	ValidFrom       time.Time       // inclusive
	ValidUntil      time.Time       // inclusive
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewBudget creates a budget with its full amount remaining
func NewBudget(teamID uuid.UUID, name string, total decimal.Decimal, validFrom, validUntil time.Time) *Budget {
	now := time.Now().UTC()
	return &Budget{
		ID:              uuid.New(),
		TeamID:          teamID,
		Name:            name,
		TotalAmount:     total,
		RemainingAmount: total,
		ValidFrom:       validFrom,
		ValidUntil:      validUntil,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate ensures the budget adheres to domain rules
func (b *Budget) Validate() error {
	if b.Name == "" {
		return errors.New("budget name cannot be empty")
	}

	if b.TeamID == uuid.Nil {
		return errors.New("budget must belong to a team")
	}

	if b.TotalAmount.LessThan(decimal.Zero) {
		return errors.New("budget total amount cannot be negative")
	}

	if !HasMonetaryPrecision(b.TotalAmount) || !HasMonetaryPrecision(b.RemainingAmount) {
		return errors.New("budget amounts cannot have more than 2 decimal places")
	}

	if b.RemainingAmount.LessThan(decimal.Zero) || b.RemainingAmount.GreaterThan(b.TotalAmount) {
		return errors.New("budget remaining amount must be between 0 and the total amount")
	}

	if b.ValidFrom.After(b.ValidUntil) {
		return errors.New("budget valid from must not be after valid until")
	}

	return nil
}

// TimePrecision is the resolution at which instants are stored and compared.
// Postgres TIMESTAMPTZ keeps microseconds, so every store truncates to it.
const TimePrecision = time.Microsecond

// IsActive reports whether at falls within [ValidFrom, ValidUntil], compared at TimePrecision
func (b *Budget) IsActive(at time.Time) bool {
	at = at.Truncate(TimePrecision)
	return !at.Before(b.ValidFrom.Truncate(TimePrecision)) && !at.After(b.ValidUntil.Truncate(TimePrecision))
}

// CanCover reports whether the remaining amount covers amount on its own
func (b *Budget) CanCover(amount decimal.Decimal) bool {
	return b.RemainingAmount.GreaterThanOrEqual(amount)
}

// IsEligible reports whether the budget can fund amount at the given instant
func (b *Budget) IsEligible(amount decimal.Decimal, at time.Time) bool {
	return b.IsActive(at) && b.CanCover(amount)
}

// SpentAmount is TotalAmount - RemainingAmount
func (b *Budget) SpentAmount() decimal.Decimal {
	return b.TotalAmount.Sub(b.RemainingAmount)
}

// UsagePercentage returns the spent share of the budget rounded to a whole percent
func (b *Budget) UsagePercentage() int {
	if b.TotalAmount.IsZero() {
		return 0
	}
	return int(b.SpentAmount().Div(b.TotalAmount).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
