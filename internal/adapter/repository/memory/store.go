// Package memory provides process-local implementations of the domain repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// Store holds teams, users, budgets and transactions in memory.
// Reads take mu briefly; ledger scopes additionally hold a per-budget slot for their whole
// duration, so reads never wait on an in-flight debit.
type Store struct {
	mu           sync.RWMutex
	teams        map[uuid.UUID]domain.Team
	users        map[uuid.UUID]domain.User
	budgets      map[uuid.UUID]domain.Budget
	transactions []domain.Transaction
	budgetSlots  map[uuid.UUID]chan struct{}
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		teams:       make(map[uuid.UUID]domain.Team),
		users:       make(map[uuid.UUID]domain.User),
		budgets:     make(map[uuid.UUID]domain.Budget),
		budgetSlots: make(map[uuid.UUID]chan struct{}),
	}
}

func (s *Store) slot(budgetID uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.budgetSlots[budgetID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.budgetSlots[budgetID] = ch
	}
	return ch
}

// teamRepository implements domain.TeamRepository
type teamRepository struct {
	store *Store
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(store *Store) domain.TeamRepository {
	return &teamRepository{store: store}
}

func (r *teamRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	team, ok := r.store.teams[id]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	return &team, nil
}

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.teams {
		if existing.Name == team.Name {
			return fmt.Errorf("failed to create team: name %q already exists", team.Name)
		}
	}
	r.store.teams[team.ID] = *team
	return nil
}

// userRepository implements domain.UserRepository
type userRepository struct {
	store *Store
}

// NewUserRepository creates a new user repository
func NewUserRepository(store *Store) domain.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.teams[user.TeamID]; !ok {
		return fmt.Errorf("failed to create user: %w", domain.ErrTeamNotFound)
	}
	r.store.users[user.ID] = *user
	return nil
}

func (r *userRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	users := make([]*domain.User, 0)
	for _, user := range r.store.users {
		if user.TeamID == teamID {
			u := user
			users = append(users, &u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Role != users[j].Role {
			return users[i].Role == domain.RoleAdmin
		}
		return users[i].Name < users[j].Name
	})
	return users, nil
}

func (r *userRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	users := make([]*domain.User, 0, len(r.store.users))
	for _, user := range r.store.users {
		u := user
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		ti, tj := r.store.teams[users[i].TeamID], r.store.teams[users[j].TeamID]
		if ti.Name != tj.Name {
			return ti.Name < tj.Name
		}
		if users[i].TeamID != users[j].TeamID {
			return users[i].TeamID.String() < users[j].TeamID.String()
		}
		if users[i].Role != users[j].Role {
			return users[i].Role == domain.RoleAdmin
		}
		return users[i].Name < users[j].Name
	})
	return users, nil
}

// budgetRepository implements domain.BudgetRepository
type budgetRepository struct {
	store *Store
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(store *Store) domain.BudgetRepository {
	return &budgetRepository{store: store}
}

func (r *budgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	budget, ok := r.store.budgets[id]
	if !ok {
		return nil, domain.ErrBudgetNotFound
	}
	return &budget, nil
}

func (r *budgetRepository) Create(ctx context.Context, budget *domain.Budget) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.teams[budget.TeamID]; !ok {
		return fmt.Errorf("failed to create budget: %w", domain.ErrTeamNotFound)
	}
	if _, ok := r.store.budgets[budget.ID]; ok {
		return fmt.Errorf("failed to create budget: id %s already exists", budget.ID)
	}
	stored := *budget
	stored.RemainingAmount = stored.TotalAmount
	r.store.budgets[budget.ID] = stored
	return nil
}

func (r *budgetRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.Budget, error) {
	budgets := r.filter(func(b domain.Budget) bool { return b.TeamID == teamID })
	sort.SliceStable(budgets, func(i, j int) bool {
		if !budgets[i].ValidUntil.Equal(budgets[j].ValidUntil) {
			return budgets[i].ValidUntil.Before(budgets[j].ValidUntil)
		}
		return budgets[i].CreatedAt.After(budgets[j].CreatedAt)
	})
	return budgets, nil
}

func (r *budgetRepository) ListCandidates(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) ([]*domain.Budget, error) {
	return r.filter(func(b domain.Budget) bool {
		return b.TeamID == teamID && b.IsEligible(amount, asOf)
	}), nil
}

func (r *budgetRepository) filter(keep func(domain.Budget) bool) []*domain.Budget {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	budgets := make([]*domain.Budget, 0)
	for _, budget := range r.store.budgets {
		if keep(budget) {
			b := budget
			budgets = append(budgets, &b)
		}
	}
	return budgets
}

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(store *Store) domain.TransactionRepository {
	return &transactionRepository{store: store}
}

func (r *transactionRepository) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	transactions := make([]*domain.Transaction, 0)
	for i := len(r.store.transactions) - 1; i >= 0; i-- {
		tx := r.store.transactions[i]
		if r.store.budgets[tx.BudgetID].TeamID != teamID {
			continue
		}
		transactions = append(transactions, &tx)
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

func (r *transactionRepository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	transactions := make([]*domain.Transaction, 0)
	for _, tx := range r.store.transactions {
		if tx.BudgetID == budgetID {
			t := tx
			transactions = append(transactions, &t)
		}
	}
	return transactions, nil
}

func (r *transactionRepository) ListAll(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	transactions := make([]*domain.Transaction, 0, len(r.store.transactions))
	for i := len(r.store.transactions) - 1; i >= 0; i-- {
		tx := r.store.transactions[i]
		transactions = append(transactions, &tx)
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	if offset >= len(transactions) {
		return make([]*domain.Transaction, 0), nil
	}
	transactions = transactions[max(offset, 0):]
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

func (r *transactionRepository) CountAll(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.transactions), nil
}
