package sqlite

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

const budgetColumns = `id, team_id, name, total_cents, remaining_cents, valid_from, valid_until, created_at, updated_at`

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
	var total, remaining, validFrom, validUntil, createdAt, updatedAt int64
	err := row.Scan(
		&budget.ID,
		&budget.TeamID,
		&budget.Name,
		&total,
		&remaining,
		&validFrom,
		&validUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	budget.TotalAmount = fromCents(total)
	budget.RemainingAmount = fromCents(remaining)
	budget.ValidFrom = fromMicros(validFrom)
	budget.ValidUntil = fromMicros(validUntil)
	budget.CreatedAt = fromMicros(createdAt)
	budget.UpdatedAt = fromMicros(updatedAt)
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

func (r *budgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	budget, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to get budget by ID: %w", err)
	}
	return budget, nil
}

// Create inserts the budget with its full amount remaining
func (r *budgetRepository) Create(ctx context.Context, budget *domain.Budget) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		budget.ID,
		budget.TeamID,
		budget.Name,
		toCents(budget.TotalAmount),
		toCents(budget.TotalAmount),
		toMicros(budget.ValidFrom),
		toMicros(budget.ValidUntil),
		toMicros(budget.CreatedAt),
		toMicros(budget.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func (r *budgetRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.Budget, error) {
	return queryBudgets(ctx, r.db, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE team_id = ?
		ORDER BY valid_until ASC, created_at DESC
	`, teamID)
}

func (r *budgetRepository) ListCandidates(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) ([]*domain.Budget, error) {
	at := toMicros(asOf)
	return queryBudgets(ctx, r.db, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE team_id = ?
		  AND remaining_cents >= ?
		  AND valid_from <= ?
		  AND valid_until >= ?
	`, teamID, toCents(amount), at, at)
}
