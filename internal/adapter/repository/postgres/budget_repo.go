package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

const budgetColumns = `id, team_id, name, total_amount, remaining_amount, valid_from, valid_until, created_at, updated_at`

// budgetRepository implements domain.BudgetRepository
type budgetRepository struct {
	db *DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *DB) domain.BudgetRepository {
	return &budgetRepository{db: db}
}

func scanBudget(row scanner) (*domain.Budget, error) {
	var budget domain.Budget
	var totalStr, remainingStr string

	err := row.Scan(
		&budget.ID,
		&budget.TeamID,
		&budget.Name,
		&totalStr,
		&remainingStr,
		&budget.ValidFrom,
		&budget.ValidUntil,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse total_amount (DECIMAL)
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_amount: %w", err)
	}
	budget.TotalAmount = total

	// Parse remaining_amount (DECIMAL)
	remaining, err := decimal.NewFromString(remainingStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remaining_amount: %w", err)
	}
	budget.RemainingAmount = remaining

	return &budget, nil
}

func queryBudgets(ctx context.Context, db *DB, query string, args ...any) ([]*domain.Budget, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	budgets := make([]*domain.Budget, 0)
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, budget)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budgets: %w", err)
	}

	return budgets, nil
}

// GetByID retrieves a budget by its ID
func (r *budgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1`

	budget, err := scanBudget(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to get budget by ID: %w", err)
	}

	return budget, nil
}

// Create creates a new budget with its full amount remaining
func (r *budgetRepository) Create(ctx context.Context, budget *domain.Budget) error {
	query := `
		INSERT INTO budgets (` + budgetColumns + `)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		budget.ID,
		budget.TeamID,
		budget.Name,
		budget.TotalAmount.String(),
		// TIMESTAMPTZ rounds to the nearest microsecond, truncate first so bounds never move later
		budget.ValidFrom.Truncate(domain.TimePrecision),
		budget.ValidUntil.Truncate(domain.TimePrecision),
		budget.CreatedAt,
		budget.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}

	return nil
}

// ListByTeam retrieves all budgets of a team, soonest expiry first
func (r *budgetRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets
		WHERE team_id = $1
		ORDER BY valid_until ASC, created_at DESC
	`

	return queryBudgets(ctx, r.db, query, teamID)
}

// ListCandidates retrieves the team budgets active at asOf that can cover amount
func (r *budgetRepository) ListCandidates(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) ([]*domain.Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets
		WHERE team_id = $1
		  AND remaining_amount >= $2
		  AND valid_from <= $3
		  AND valid_until >= $3
	`

	return queryBudgets(ctx, r.db, query, teamID, amount.String(), asOf.Truncate(domain.TimePrecision))
}
