package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/budgetpool-backend/internal/adapter/repository/sqlutil"
	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// ledgerStore implements domain.LedgerStore
type ledgerStore struct {
	db *DB
}

// NewLedgerStore creates a new ledger store
func NewLedgerStore(db *DB) domain.LedgerStore {
	return &ledgerStore{db: db}
}

// RunInTx runs fn in a READ COMMITTED transaction; budget rows are serialized with FOR UPDATE
func (s *ledgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return sqlutil.RunInTx(ctx, s.db.DB, opts, func(tx *sql.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

// ledgerTx implements domain.LedgerTx
type ledgerTx struct {
	tx *sql.Tx
}

// LockBudget re-reads the budget row and holds its row lock until commit or rollback
func (t *ledgerTx) LockBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1 FOR UPDATE`

	budget, err := scanBudget(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to lock budget: %w", err)
	}

	return budget, nil
}

// InsertTransaction records a transaction
func (t *ledgerTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, budget_id, user_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.ExecContext(ctx, query,
		tx.ID,
		tx.BudgetID,
		tx.UserID,
		tx.Amount.String(),
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// DebitBudget only updates a row that still covers the amount
func (t *ledgerTx) DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal, updatedAt time.Time) (*domain.Budget, error) {
	query := `
		UPDATE budgets
		SET remaining_amount = remaining_amount - $1, updated_at = $2
		WHERE id = $3 AND remaining_amount >= $1
		RETURNING ` + budgetColumns

	budget, err := scanBudget(t.tx.QueryRowContext(ctx, query, amount.String(), updatedAt, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIneligible
		}
		return nil, fmt.Errorf("failed to debit budget: %w", err)
	}

	return budget, nil
}
