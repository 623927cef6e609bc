package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

var tracer = otel.Tracer("github.com/simaogato/budgetpool-backend/internal/usecase/ledger")

// ApplyInput represents the input for debiting a budget
type ApplyInput struct {
	BudgetID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Description string
	AsOf        time.Time // eligibility instant and transaction timestamp
}

// ApplyResult is the committed transaction and the budget as it stands after the debit
type ApplyResult struct {
	Transaction *domain.Transaction
	Budget      *domain.Budget
}

// Ledger debits budgets and records transactions as one atomic unit
type Ledger struct {
	Store   domain.LedgerStore
	Ceiling decimal.Decimal
}

// NewLedger creates a new Ledger instance
func NewLedger(store domain.LedgerStore, ceiling decimal.Decimal) *Ledger {
	return &Ledger{
		Store:   store,
		Ceiling: ceiling,
	}
}

// Apply debits input.Amount from the budget and records the transaction.
// Logic:
//  1. Re-validate amount and description (callers validate too, this is the last boundary)
//  2. Inside one store transaction: lock and re-read the budget
//  3. Re-check active window and remaining amount, reject with domain.ErrIneligible otherwise
//  4. Insert the transaction, then decrement the remaining amount
//  5. Commit; any failure rolls back every effect
//
// Concurrent applies against the same budget serialize on the budget lock, so the remaining
// amount always equals the total minus exactly the accepted transactions and never goes negative.
func (l *Ledger) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", input.BudgetID.String()))

	if err := domain.ValidateAmount(input.Amount, l.Ceiling); err != nil {
		return nil, err
	}

	description, err := domain.NormalizeDescription(input.Description)
	if err != nil {
		return nil, err
	}

	var result *ApplyResult
	err = l.Store.RunInTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		budget, err := tx.LockBudget(ctx, input.BudgetID)
		if err != nil {
			return err
		}

		if !budget.IsEligible(input.Amount, input.AsOf) {
			return domain.ErrIneligible
		}

		transaction := &domain.Transaction{
			ID:          uuid.New(),
			BudgetID:    budget.ID,
			UserID:      input.UserID,
			Amount:      input.Amount,
			Description: description,
			CreatedAt:   input.AsOf,
		}

		if err := transaction.Validate(l.Ceiling); err != nil {
			return err
		}

		if err := tx.InsertTransaction(ctx, transaction); err != nil {
			return err
		}

		updated, err := tx.DebitBudget(ctx, budget.ID, input.Amount, input.AsOf)
		if err != nil {
			return err
		}

		if updated.RemainingAmount.LessThan(decimal.Zero) {
			return domain.ErrIneligible
		}

		result = &ApplyResult{
			Transaction: transaction,
			Budget:      updated,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return result, nil
}
