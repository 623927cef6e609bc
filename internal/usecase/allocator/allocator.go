package allocator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

var tracer = otel.Tracer("github.com/simaogato/budgetpool-backend/internal/usecase/allocator")

// SelectBudget picks the budget that should fund amount for teamID at asOf.
// Returns nil when no single budget qualifies; amounts are never split across budgets.
// Logic:
//  1. Keep budgets owned by teamID that are active at asOf and can cover amount
//  2. Rank by ValidUntil asc (spend what expires first)
//  3. Then by RemainingAmount asc (drain small pools, keep large ones flexible)
//  4. Then by ID so that equal snapshots always produce the same pick
func SelectBudget(budgets []*domain.Budget, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) *domain.Budget {
	candidates := make([]*domain.Budget, 0, len(budgets))
	for _, budget := range budgets {
		if budget == nil || budget.TeamID != teamID {
			continue
		}
		if !budget.IsEligible(amount, asOf) {
			continue
		}
		candidates = append(candidates, budget)
	}

	if len(candidates) == 0 {
		return nil
	}

	Rank(candidates)
	return candidates[0]
}

// Rank sorts budgets in allocation preference order, in place
func Rank(budgets []*domain.Budget) {
	sort.SliceStable(budgets, func(i, j int) bool {
		return less(budgets[i], budgets[j])
	})
}

func less(a, b *domain.Budget) bool {
	if !a.ValidUntil.Equal(b.ValidUntil) {
		return a.ValidUntil.Before(b.ValidUntil)
	}
	if cmp := a.RemainingAmount.Cmp(b.RemainingAmount); cmp != 0 {
		return cmp < 0
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Allocator selects budgets from the current store snapshot.
// It never mutates state and reserves nothing: the ledger re-validates on commit.
type Allocator struct {
	BudgetRepo domain.BudgetRepository
}

// NewAllocator creates a new Allocator instance
func NewAllocator(budgetRepo domain.BudgetRepository) *Allocator {
	return &Allocator{
		BudgetRepo: budgetRepo,
	}
}

// Select returns the ID of the preferred eligible budget, or domain.ErrNoEligibleBudget
func (a *Allocator) Select(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "allocator.Select")
	defer span.End()
	span.SetAttributes(attribute.String("team.id", teamID.String()))

	candidates, err := a.BudgetRepo.ListCandidates(ctx, teamID, amount, asOf)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list candidate budgets: %w", err)
	}

	selected := SelectBudget(candidates, teamID, amount, asOf)
	if selected == nil {
		return uuid.Nil, domain.ErrNoEligibleBudget
	}

	span.SetAttributes(attribute.String("budget.id", selected.ID.String()))
	return selected.ID, nil
}
