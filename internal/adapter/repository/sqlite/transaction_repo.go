package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

const transactionColumns = `t.id, t.budget_id, t.user_id, t.amount_cents, t.description, t.created_at`

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		JOIN budgets b ON b.id = t.budget_id
		WHERE b.team_id = ?
		ORDER BY t.created_at DESC, t.rowid DESC
		LIMIT ?
	`, teamID, limit)
}

func (r *transactionRepository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*domain.Transaction, error) {
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.budget_id = ?
		ORDER BY t.created_at ASC, t.rowid ASC
	`, budgetID)
}

func (r *transactionRepository) ListAll(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	return r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		ORDER BY t.created_at DESC, t.rowid DESC
		LIMIT ? OFFSET ?
	`, limit, max(offset, 0))
}

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
		var amount, createdAt int64
		if err := rows.Scan(&tx.ID, &tx.BudgetID, &tx.UserID, &amount, &tx.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Amount = fromCents(amount)
		tx.CreatedAt = fromMicros(createdAt)
		transactions = append(transactions, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
