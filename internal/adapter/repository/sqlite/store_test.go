package sqlite

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/budgetpool-backend/internal/domain"
	"github.com/simaogato/budgetpool-backend/internal/usecase/allocator"
	"github.com/simaogato/budgetpool-backend/internal/usecase/ledger"
	"github.com/simaogato/budgetpool-backend/internal/usecase/purchase"
)

var now = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db           *DB
	teams        domain.TeamRepository
	users        domain.UserRepository
	budgets      domain.BudgetRepository
	transactions domain.TransactionRepository
	team         *domain.Team
	user         *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "budgetpool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:           db,
		teams:        NewTeamRepository(db),
		users:        NewUserRepository(db),
		budgets:      NewBudgetRepository(db),
		transactions: NewTransactionRepository(db),
	}

	ctx := context.Background()
	f.team = &domain.Team{ID: uuid.New(), Name: "Engineering", CreatedAt: now}
	require.NoError(t, f.teams.Create(ctx, f.team))
	f.user = &domain.User{ID: uuid.New(), TeamID: f.team.ID, Name: "Alice", Email: "alice@example.com", Role: domain.RoleMember, CreatedAt: now}
	require.NoError(t, f.users.Create(ctx, f.user))
	return f
}

func (f *fixture) budget(t *testing.T, name, total string, from, until time.Time) *domain.Budget {
	t.Helper()
	budget := domain.NewBudget(f.team.ID, name, decimal.RequireFromString(total), from, until)
	budget.CreatedAt = now
	budget.UpdatedAt = now
	require.NoError(t, f.budgets.Create(context.Background(), budget))
	return budget
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgetpool.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpen_CreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "budgetpool.db")

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.FileExists(t, path)
	require.NoError(t, db.PingContext(context.Background()))
}

func TestTeamAndUserRepositories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	team, err := f.teams.GetByID(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", team.Name)
	assert.True(t, now.Equal(team.CreatedAt))

	_, err = f.teams.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)

	err = f.teams.Create(ctx, &domain.Team{ID: uuid.New(), Name: "Engineering", CreatedAt: now})
	assert.Error(t, err, "team names are unique")

	admin := &domain.User{ID: uuid.New(), TeamID: f.team.ID, Name: "Zoe", Role: domain.RoleAdmin, CreatedAt: now}
	require.NoError(t, f.users.Create(ctx, admin))

	users, err := f.users.ListByTeam(ctx, f.team.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, admin.ID, users[0].ID, "admins first")
	assert.Equal(t, f.user.ID, users[1].ID)

	got, err := f.users.GetByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, domain.RoleMember, got.Role)

	_, err = f.users.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBudgetRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Q3 Tools", "1234.56", now.AddDate(0, -1, 0), now.AddDate(0, 2, 0))

	got, err := f.budgets.GetByID(ctx, budget.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.TeamID, got.TeamID)
	assert.Equal(t, "Q3 Tools", got.Name)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(got.TotalAmount))
	assert.True(t, got.TotalAmount.Equal(got.RemainingAmount))
	assert.True(t, budget.ValidFrom.Equal(got.ValidFrom))
	assert.True(t, budget.ValidUntil.Equal(got.ValidUntil))

	_, err = f.budgets.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)
}

func TestBudgetRepository_CreateRejectsUnknownTeam(t *testing.T) {
	f := newFixture(t)
	budget := domain.NewBudget(uuid.New(), "Orphan", decimal.NewFromInt(10), now, now.AddDate(0, 1, 0))

	assert.Error(t, f.budgets.Create(context.Background(), budget))
}

func TestBudgetRepository_ListByTeamOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	annual := f.budget(t, "Annual", "1000", now.AddDate(0, -1, 0), now.AddDate(0, 5, 0))
	summer := f.budget(t, "Summer", "1000", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	budgets, err := f.budgets.ListByTeam(ctx, f.team.ID)
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, summer.ID, budgets[0].ID)
	assert.Equal(t, annual.ID, budgets[1].ID)
}

func TestBudgetRepository_ListCandidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	edge := f.budget(t, "Ends Now", "100", now.AddDate(0, -1, 0), now)
	starts := f.budget(t, "Starts Now", "100", now, now.AddDate(0, 1, 0))
	f.budget(t, "Too Small", "99.99", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	f.budget(t, "Expired", "500", now.AddDate(0, -2, 0), now.Add(-time.Millisecond))
	f.budget(t, "Future", "500", now.Add(time.Millisecond), now.AddDate(0, 1, 0))

	candidates, err := f.budgets.ListCandidates(ctx, f.team.ID, decimal.NewFromInt(100), now)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{edge.ID, starts.ID}, ids)

	other, err := f.budgets.ListCandidates(ctx, uuid.New(), decimal.NewFromInt(1), now)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBudgetRepository_SubMillisecondBoundaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	instant := time.Date(2025, 7, 15, 12, 0, 0, 123456789, time.UTC)
	flash := f.budget(t, "Flash", "100", instant, instant)
	f.budget(t, "Ended A Tick Before", "100", instant.AddDate(0, -1, 0), instant.Add(-domain.TimePrecision))

	stored, err := f.budgets.GetByID(ctx, flash.ID)
	require.NoError(t, err)
	assert.True(t, instant.Truncate(domain.TimePrecision).Equal(stored.ValidUntil))

	selected, err := allocator.NewAllocator(f.budgets).Select(ctx, f.team.ID, decimal.NewFromInt(10), instant)
	require.NoError(t, err)
	assert.Equal(t, flash.ID, selected)

	result, err := ledger.NewLedger(NewLedgerStore(f.db), domain.DefaultAmountCeiling).Apply(ctx, ledger.ApplyInput{
		BudgetID: flash.ID, UserID: f.user.ID, Amount: decimal.NewFromInt(10),
		Description: "Flash sale", AsOf: instant,
	})
	require.NoError(t, err)
	assert.Equal(t, "90.00", result.Budget.RemainingAmount.StringFixed(2))

	_, err = allocator.NewAllocator(f.budgets).Select(ctx, f.team.ID, decimal.NewFromInt(10), instant.Add(domain.TimePrecision))
	assert.ErrorIs(t, err, domain.ErrNoEligibleBudget)
}

func TestLedgerStore_DebitAndRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Q3", "100", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	l := ledger.NewLedger(NewLedgerStore(f.db), domain.DefaultAmountCeiling)

	result, err := l.Apply(ctx, ledger.ApplyInput{
		BudgetID: budget.ID, UserID: f.user.ID, Amount: decimal.RequireFromString("33.33"),
		Description: "Books", AsOf: now,
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("66.67").Equal(result.Budget.RemainingAmount))

	txs, err := f.transactions.ListByBudget(ctx, budget.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, result.Transaction.ID, txs[0].ID)
	assert.True(t, decimal.RequireFromString("33.33").Equal(txs[0].Amount))
	assert.Equal(t, "Books", txs[0].Description)
	assert.True(t, now.Equal(txs[0].CreatedAt))
}

func TestLedgerStore_ConditionalDebitRefusesOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Q3", "10", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	err := NewLedgerStore(f.db).RunInTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		if _, err := tx.LockBudget(ctx, budget.ID); err != nil {
			return err
		}
		_, err := tx.DebitBudget(ctx, budget.ID, decimal.RequireFromString("10.01"), now)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrIneligible)

	got, err := f.budgets.GetByID(ctx, budget.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got.RemainingAmount))
}

func TestLedgerStore_RollbackDiscardsInsert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Q3", "10", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	err := NewLedgerStore(f.db).RunInTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		if err := tx.InsertTransaction(ctx, &domain.Transaction{
			ID: uuid.New(), BudgetID: budget.ID, UserID: f.user.ID,
			Amount: decimal.NewFromInt(50), Description: "Too much", CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err := tx.DebitBudget(ctx, budget.ID, decimal.NewFromInt(50), now)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrIneligible)

	txs, err := f.transactions.ListByBudget(ctx, budget.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestLedgerStore_LockMissingBudget(t *testing.T) {
	f := newFixture(t)

	err := NewLedgerStore(f.db).RunInTx(context.Background(), func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.LockBudget(ctx, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)
}

func TestLedgerStore_ConcurrentDebitsConserveBalance(t *testing.T) {
	// 8 workers each try 5 debits of 12.50 against 300: exactly 24 fit and the budget drains to 0
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Shared", "300", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	l := ledger.NewLedger(NewLedgerStore(f.db), domain.DefaultAmountCeiling)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := l.Apply(ctx, ledger.ApplyInput{
					BudgetID: budget.ID, UserID: f.user.ID, Amount: decimal.RequireFromString("12.50"),
					Description: "Snacks", AsOf: now,
				})
				mu.Lock()
				if err == nil {
					succeeded++
				} else if domain.KindOf(err) != domain.KindIneligible {
					failures = append(failures, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, 24, succeeded)

	got, err := f.budgets.GetByID(ctx, budget.ID)
	require.NoError(t, err)
	assert.True(t, got.RemainingAmount.IsZero())

	txs, err := f.transactions.ListByBudget(ctx, budget.ID)
	require.NoError(t, err)
	require.Len(t, txs, succeeded)
	spent := decimal.Zero
	for _, tx := range txs {
		spent = spent.Add(tx.Amount)
	}
	assert.True(t, got.TotalAmount.Sub(spent).Equal(got.RemainingAmount))
}

func TestLedgerStore_RandomConcurrentPurchasesConserveEveryBudget(t *testing.T) {
	for round := uint64(1); round <= 3; round++ {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(round, 7))
			f := newFixture(t)

			pool := make([]*domain.Budget, 0, 4)
			for i := 0; i < 4; i++ {
				total := decimal.New(rng.Int64N(30000)+1000, -2)
				pool = append(pool, f.budget(t, fmt.Sprintf("Budget %d", i), total.StringFixed(2), now.AddDate(0, -1, 0), now.AddDate(0, 1+rng.IntN(3), 0)))
			}

			opts := purchase.DefaultOptions()
			opts.RetryInitialInterval = time.Millisecond
			opts.RetryMaxInterval = 5 * time.Millisecond
			opts.Timeout = 30 * time.Second
			service := purchase.NewPurchaseService(
				allocator.NewAllocator(f.budgets),
				ledger.NewLedger(NewLedgerStore(f.db), domain.DefaultAmountCeiling),
				f.teams,
				f.users,
				nil,
				opts,
			)

			const requests = 30
			amounts := make([]string, requests)
			for i := range amounts {
				amounts[i] = decimal.New(rng.Int64N(12000)+1, -2).StringFixed(2)
			}

			var wg sync.WaitGroup
			errs := make([]error, requests)
			for i := 0; i < requests; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = service.Purchase(ctx, purchase.PurchaseInput{
						TeamID: f.team.ID, UserID: f.user.ID, Amount: amounts[i], Description: "Random", Now: now,
					})
				}(i)
			}
			wg.Wait()

			accepted := 0
			for _, err := range errs {
				if err == nil {
					accepted++
					continue
				}
				assert.ErrorIs(t, err, domain.ErrNoEligibleBudget)
			}

			recorded := 0
			for _, budget := range pool {
				got, err := f.budgets.GetByID(ctx, budget.ID)
				require.NoError(t, err)
				assert.False(t, got.RemainingAmount.IsNegative(), "remaining never negative")
				assert.True(t, got.RemainingAmount.LessThanOrEqual(got.TotalAmount), "remaining never above total")

				txs, err := f.transactions.ListByBudget(ctx, budget.ID)
				require.NoError(t, err)
				spent := decimal.Zero
				for _, tx := range txs {
					spent = spent.Add(tx.Amount)
				}
				assert.True(t, got.TotalAmount.Sub(spent).Equal(got.RemainingAmount), "conservation on %s", got.Name)
				recorded += len(txs)
			}
			assert.Equal(t, accepted, recorded)
		})
	}
}

func TestTransactionRepository_ListByTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Q3", "100", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	l := ledger.NewLedger(NewLedgerStore(f.db), domain.DefaultAmountCeiling)

	for i := 0; i < 4; i++ {
		_, err := l.Apply(ctx, ledger.ApplyInput{
			BudgetID: budget.ID, UserID: f.user.ID, Amount: decimal.NewFromInt(1),
			Description: "Coffee", AsOf: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	latest, err := f.transactions.ListByTeam(ctx, f.team.ID, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.True(t, now.Add(3*time.Minute).Equal(latest[0].CreatedAt))
	assert.True(t, now.Add(2*time.Minute).Equal(latest[1].CreatedAt))

	all, err := f.transactions.ListByTeam(ctx, f.team.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestTransactionRepository_ListAllPages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budget := f.budget(t, "Q3", "100", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))

	other := &domain.Team{ID: uuid.New(), Name: "Design", CreatedAt: now}
	require.NoError(t, f.teams.Create(ctx, other))
	otherBudget := domain.NewBudget(other.ID, "Design Q3", decimal.NewFromInt(100), now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	require.NoError(t, f.budgets.Create(ctx, otherBudget))

	l := ledger.NewLedger(NewLedgerStore(f.db), domain.DefaultAmountCeiling)
	for i := 0; i < 5; i++ {
		budgetID := budget.ID
		if i%2 == 1 {
			budgetID = otherBudget.ID
		}
		_, err := l.Apply(ctx, ledger.ApplyInput{
			BudgetID: budgetID, UserID: f.user.ID, Amount: decimal.NewFromInt(1),
			Description: "Coffee", AsOf: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	total, err := f.transactions.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	page, err := f.transactions.ListAll(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, now.Add(3*time.Minute).Equal(page[0].CreatedAt))
	assert.Equal(t, otherBudget.ID, page[0].BudgetID)
	assert.True(t, now.Add(2*time.Minute).Equal(page[1].CreatedAt))

	rest, err := f.transactions.ListAll(ctx, 0, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	past, err := f.transactions.ListAll(ctx, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestUserRepository_ListAllOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	design := &domain.Team{ID: uuid.New(), Name: "Design", CreatedAt: now}
	require.NoError(t, f.teams.Create(ctx, design))
	for _, user := range []*domain.User{
		{ID: uuid.New(), TeamID: f.team.ID, Name: "Morgan", Email: "morgan@example.com", Role: domain.RoleAdmin, CreatedAt: now},
		{ID: uuid.New(), TeamID: design.ID, Name: "Zoe", Email: "zoe@example.com", Role: domain.RoleMember, CreatedAt: now},
		{ID: uuid.New(), TeamID: design.ID, Name: "Yann", Email: "yann@example.com", Role: domain.RoleAdmin, CreatedAt: now},
	} {
		require.NoError(t, f.users.Create(ctx, user))
	}

	users, err := f.users.ListAll(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.Name)
	}
	assert.Equal(t, []string{"Yann", "Zoe", "Morgan", "Alice"}, names)
}
