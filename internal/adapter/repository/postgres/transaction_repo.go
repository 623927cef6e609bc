package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// ListByTeam retrieves the most recent transactions across the team's budgets
func (r *transactionRepository) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT t.id, t.budget_id, t.user_id, t.amount, t.description, t.created_at
		FROM transactions t
		JOIN budgets b ON b.id = t.budget_id
		WHERE b.team_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2
	`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	return r.query(ctx, query, teamID, limitArg)
}

// ListByBudget retrieves all transactions of a budget, oldest first
func (r *transactionRepository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT id, budget_id, user_id, amount, description, created_at
		FROM transactions
		WHERE budget_id = $1
		ORDER BY created_at ASC, id
	`

	return r.query(ctx, query, budgetID)
}

// ListAll retrieves one page of transactions across all teams, newest first
func (r *transactionRepository) ListAll(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT id, budget_id, user_id, amount, description, created_at
		FROM transactions
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	return r.query(ctx, query, limitArg, max(offset, 0))
}

// CountAll returns the number of transactions across all teams
func (r *transactionRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

func (r *transactionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*domain.Transaction, 0)
	for rows.Next() {
		var tx domain.Transaction
		var amountStr string
		if err := rows.Scan(&tx.ID, &tx.BudgetID, &tx.UserID, &amountStr, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		// Parse amount (DECIMAL)
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		tx.Amount = amount

		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}
