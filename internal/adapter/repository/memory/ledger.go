package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// ledgerStore implements domain.LedgerStore
type ledgerStore struct {
	store *Store
}

// NewLedgerStore creates a new ledger store over the in-memory data
func NewLedgerStore(store *Store) domain.LedgerStore {
	return &ledgerStore{store: store}
}

// RunInTx stages every write and publishes them together once fn succeeds
func (l *ledgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &ledgerTx{
		store:   l.store,
		budgets: make(map[uuid.UUID]*domain.Budget),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	// A scope abandoned before commit leaves no trace
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit aborted: %w", err)
	}

	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	for id, budget := range tx.budgets {
		l.store.budgets[id] = *budget
	}
	l.store.transactions = append(l.store.transactions, tx.transactions...)
	return nil
}

// ledgerTx implements domain.LedgerTx
type ledgerTx struct {
	store        *Store
	held         []chan struct{}
	budgets      map[uuid.UUID]*domain.Budget
	transactions []domain.Transaction
}

func (t *ledgerTx) release() {
	for _, slot := range t.held {
		<-slot
	}
	t.held = nil
}

func (t *ledgerTx) LockBudget(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	if budget, ok := t.budgets[id]; ok {
		b := *budget
		return &b, nil
	}

	slot := t.store.slot(id)
	select {
	case slot <- struct{}{}:
		t.held = append(t.held, slot)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.store.mu.RLock()
	budget, ok := t.store.budgets[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, domain.ErrBudgetNotFound
	}

	t.budgets[id] = &budget
	b := budget
	return &b, nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if _, ok := t.budgets[tx.BudgetID]; !ok {
		return fmt.Errorf("failed to insert transaction: budget %s is not locked", tx.BudgetID)
	}
	t.transactions = append(t.transactions, *tx)
	return nil
}

func (t *ledgerTx) DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal, updatedAt time.Time) (*domain.Budget, error) {
	budget, ok := t.budgets[id]
	if !ok {
		return nil, fmt.Errorf("failed to debit budget: budget %s is not locked", id)
	}
	if !budget.CanCover(amount) {
		return nil, domain.ErrIneligible
	}
	budget.RemainingAmount = budget.RemainingAmount.Sub(amount)
	budget.UpdatedAt = updatedAt
	b := *budget
	return &b, nil
}
