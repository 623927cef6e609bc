package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TeamRepository defines the interface for team persistence operations
type TeamRepository interface {
	// GetByID retrieves a team by its ID, returning ErrTeamNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*Team, error)

	// Create creates a new team
	Create(ctx context.Context, team *Team) error
}

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	// GetByID retrieves a user by its ID, returning ErrUserNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// ListByTeam retrieves all users of a team, admins first then by name
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*User, error)

	// ListAll retrieves the users of every team, ordered by team name, admins first, then by name
	ListAll(ctx context.Context) ([]*User, error)
}

// BudgetRepository defines the read side of budget persistence.
// It has no way to change RemainingAmount: debits only go through LedgerStore.
type BudgetRepository interface {
	// GetByID retrieves a budget by its ID, returning ErrBudgetNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*Budget, error)

	// Create creates a new budget with RemainingAmount equal to TotalAmount
	Create(ctx context.Context, budget *Budget) error

	// ListByTeam retrieves all budgets of a team ordered by valid_until asc, created_at desc
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*Budget, error)

	// ListCandidates retrieves the team budgets that are active at asOf and can cover amount.
	// The order of the result is not significant.
	ListCandidates(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) ([]*Budget, error)
}

// TransactionRepository defines the read side of transaction persistence.
// Transactions are written only inside a LedgerStore scope.
type TransactionRepository interface {
	// ListByTeam retrieves the most recent transactions across the team's budgets
	ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]*Transaction, error)

	// ListByBudget retrieves all transactions debited against a budget, oldest first
	ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Transaction, error)

	// ListAll retrieves one page of transactions across all teams, newest first
	ListAll(ctx context.Context, limit, offset int) ([]*Transaction, error)

	// CountAll returns the number of transactions across all teams
	CountAll(ctx context.Context) (int, error)
}

// LedgerStore provides the atomic, isolated read-modify-write scope used to debit budgets.
// Either every effect made through the LedgerTx becomes visible, or none does.
type LedgerStore interface {
	// RunInTx runs fn inside one store transaction and commits when fn returns nil.
	// A commit failure whose effect cannot be determined is returned as an OUTCOME_UNKNOWN error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the set of operations available inside a LedgerStore scope
type LedgerTx interface {
	// LockBudget re-reads the budget and holds it against concurrent debits until the scope ends.
	// Returns ErrBudgetNotFound if it does not exist.
	LockBudget(ctx context.Context, id uuid.UUID) (*Budget, error)

	// InsertTransaction records a transaction
	InsertTransaction(ctx context.Context, tx *Transaction) error

	// DebitBudget decrements the remaining amount and returns the updated budget.
	// Returns ErrIneligible if the remaining amount does not cover amount.
	DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal, updatedAt time.Time) (*Budget, error)
}
