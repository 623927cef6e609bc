package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable record of one purchase debited against one budget
type Transaction struct {
	ID          uuid.UUID
	BudgetID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal // always positive
	Description string
	CreatedAt   time.Time
}

// Validate ensures the transaction adheres to domain rules
// The amount rules are the same ones applied to incoming requests.
func (t *Transaction) Validate(ceiling decimal.Decimal) error {
	if t.BudgetID == uuid.Nil {
		return errors.New("transaction must reference a budget")
	}

	if t.UserID == uuid.Nil {
		return errors.New("transaction must reference a user")
	}

	if err := ValidateAmount(t.Amount, ceiling); err != nil {
		return err
	}

	if _, err := NormalizeDescription(t.Description); err != nil {
		return err
	}

	return nil
}
