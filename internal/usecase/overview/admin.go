package overview

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// DefaultAdminTransactionLimit is the page size of ListAllTransactions when none is given
const DefaultAdminTransactionLimit = 20

// TransactionView is a transaction with the user who made it and the budget it was debited from
type TransactionView struct {
	Transaction *domain.Transaction
	User        *domain.User
	Budget      *domain.Budget
	Team        *domain.Team
}

// TransactionPage is one page of the cross-team transaction log
type TransactionPage struct {
	Transactions []TransactionView
	Total        int
	Limit        int
	Offset       int
	HasMore      bool
}

// ListAllTransactions returns one page of transactions across every team, newest first.
// Only admins may call it. limit <= 0 selects DefaultAdminTransactionLimit.
func (s *OverviewService) ListAllTransactions(ctx context.Context, actingUserID uuid.UUID, limit, offset int) (*TransactionPage, error) {
	if err := s.requireAdmin(ctx, actingUserID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultAdminTransactionLimit
	}
	limit = clampLimit(limit)
	offset = max(offset, 0)

	total, err := s.TransactionRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	transactions, err := s.TransactionRepo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	lookup := newLookup(s)
	views := make([]TransactionView, 0, len(transactions))
	for _, tx := range transactions {
		view, err := lookup.transaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	return &TransactionPage{
		Transactions: views,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
		HasMore:      offset+limit < total,
	}, nil
}

// ListAllUsers returns the users of every team with their team, grouped by team, admins first.
// Only admins may call it.
func (s *OverviewService) ListAllUsers(ctx context.Context, actingUserID uuid.UUID) ([]UserView, error) {
	if err := s.requireAdmin(ctx, actingUserID); err != nil {
		return nil, err
	}

	users, err := s.UserRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	lookup := newLookup(s)
	views := make([]UserView, 0, len(users))
	for _, user := range users {
		team, err := lookup.team(ctx, user.TeamID)
		if err != nil {
			return nil, err
		}
		views = append(views, UserView{User: user, Team: team})
	}

	return views, nil
}

func (s *OverviewService) requireAdmin(ctx context.Context, userID uuid.UUID) error {
	user, err := s.UserRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}

// lookup memoizes the rows referenced by one page
type lookup struct {
	svc     *OverviewService
	teams   map[uuid.UUID]*domain.Team
	users   map[uuid.UUID]*domain.User
	budgets map[uuid.UUID]*domain.Budget
}

func newLookup(svc *OverviewService) *lookup {
	return &lookup{
		svc:     svc,
		teams:   make(map[uuid.UUID]*domain.Team),
		users:   make(map[uuid.UUID]*domain.User),
		budgets: make(map[uuid.UUID]*domain.Budget),
	}
}

func (l *lookup) transaction(ctx context.Context, tx *domain.Transaction) (TransactionView, error) {
	user, ok := l.users[tx.UserID]
	if !ok {
		var err error
		if user, err = l.svc.UserRepo.GetByID(ctx, tx.UserID); err != nil {
			return TransactionView{}, fmt.Errorf("failed to get user of transaction %s: %w", tx.ID, err)
		}
		l.users[tx.UserID] = user
	}

	budget, ok := l.budgets[tx.BudgetID]
	if !ok {
		var err error
		if budget, err = l.svc.BudgetRepo.GetByID(ctx, tx.BudgetID); err != nil {
			return TransactionView{}, fmt.Errorf("failed to get budget of transaction %s: %w", tx.ID, err)
		}
		l.budgets[tx.BudgetID] = budget
	}

	team, err := l.team(ctx, budget.TeamID)
	if err != nil {
		return TransactionView{}, err
	}

	return TransactionView{Transaction: tx, User: user, Budget: budget, Team: team}, nil
}

func (l *lookup) team(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	if team, ok := l.teams[id]; ok {
		return team, nil
	}
	team, err := l.svc.TeamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get team %s: %w", id, err)
	}
	l.teams[id] = team
	return team, nil
}
