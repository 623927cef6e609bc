package sqlite

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

// RunInTx runs fn in an IMMEDIATE transaction, which holds the database write lock from the first statement
func (s *ledgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return sqlutil.RunInTx(ctx, s.db.DB, nil, func(tx *sql.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

// ledgerTx implements domain.LedgerTx
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) LockBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	budget, err := scanBudget(t.tx.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to lock budget: %w", err)
	}
	return budget, nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, budget_id, user_id, amount_cents, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.BudgetID,
		tx.UserID,
		toCents(tx.Amount),
		tx.Description,
		toMicros(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// DebitBudget only updates a row that still covers the amount
func (t *ledgerTx) DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal, updatedAt time.Time) (*domain.Budget, error) {
	cents := toCents(amount)
	budget, err := scanBudget(t.tx.QueryRowContext(ctx, `
		UPDATE budgets
		SET remaining_cents = remaining_cents - ?, updated_at = ?
		WHERE id = ? AND remaining_cents >= ?
		RETURNING `+budgetColumns,
		cents, toMicros(updatedAt), id, cents,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIneligible
		}
		return nil, fmt.Errorf("failed to debit budget: %w", err)
	}
	return budget, nil
}
