package overview

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

const (
	// DefaultTransactionLimit is used when the caller does not ask for a page size
	DefaultTransactionLimit = 50

	// MaxTransactionLimit caps the page size of ListTransactions
	MaxTransactionLimit = 200
)

// BudgetView is a budget with the figures shown next to it
type BudgetView struct {
	Budget          *domain.Budget
	IsActive        bool
	UsagePercentage int
}

// NewBudgetView derives the display figures of budget at now
func NewBudgetView(budget *domain.Budget, now time.Time) BudgetView {
	return BudgetView{
		Budget:          budget,
		IsActive:        budget.IsActive(now),
		UsagePercentage: budget.UsagePercentage(),
	}
}

// UserView is a user together with their team
type UserView struct {
	User *domain.User
	Team *domain.Team
}

// OverviewService handles the read-only views of a team's budget pool
type OverviewService struct {
	TeamRepo        domain.TeamRepository
	UserRepo        domain.UserRepository
	BudgetRepo      domain.BudgetRepository
	TransactionRepo domain.TransactionRepository
}

// NewOverviewService creates a new OverviewService instance
func NewOverviewService(
	teamRepo domain.TeamRepository,
	userRepo domain.UserRepository,
	budgetRepo domain.BudgetRepository,
	transactionRepo domain.TransactionRepository,
) *OverviewService {
	return &OverviewService{
		TeamRepo:        teamRepo,
		UserRepo:        userRepo,
		BudgetRepo:      budgetRepo,
		TransactionRepo: transactionRepo,
	}
}

// ListBudgets returns every budget of the team, soonest expiry first
func (s *OverviewService) ListBudgets(ctx context.Context, teamID uuid.UUID, now time.Time) ([]BudgetView, error) {
	if _, err := s.TeamRepo.GetByID(ctx, teamID); err != nil {
		return nil, err
	}

	budgets, err := s.BudgetRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	views := make([]BudgetView, 0, len(budgets))
	for _, budget := range budgets {
		views = append(views, NewBudgetView(budget, now))
	}

	return views, nil
}

// ListTransactions returns the most recent transactions of the team.
// limit <= 0 selects DefaultTransactionLimit; larger values are capped at MaxTransactionLimit.
func (s *OverviewService) ListTransactions(ctx context.Context, teamID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	if _, err := s.TeamRepo.GetByID(ctx, teamID); err != nil {
		return nil, err
	}

	transactions, err := s.TransactionRepo.ListByTeam(ctx, teamID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return transactions, nil
}

// ListUsers returns the members of the team, admins first
func (s *OverviewService) ListUsers(ctx context.Context, teamID uuid.UUID) ([]*domain.User, error) {
	if _, err := s.TeamRepo.GetByID(ctx, teamID); err != nil {
		return nil, err
	}

	users, err := s.UserRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// GetUser returns a user and the team they belong to
func (s *OverviewService) GetUser(ctx context.Context, userID uuid.UUID) (*UserView, error) {
	user, err := s.UserRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	team, err := s.TeamRepo.GetByID(ctx, user.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team of user: %w", err)
	}

	return &UserView{User: user, Team: team}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTransactionLimit
	case limit > MaxTransactionLimit:
		return MaxTransactionLimit
	default:
		return limit
	}
}
