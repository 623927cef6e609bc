package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/budgetpool-backend/internal/domain"
	"github.com/simaogato/budgetpool-backend/internal/usecase/ledger"
)

// seedNamespace derives stable ids for sample records so reseeding finds them again
var seedNamespace = uuid.MustParse("6f1d3c52-8a7e-4b0f-9d8e-5a4c2b1e0f73")

// TeamID returns the id the seeder assigns to the named sample team
func TeamID(name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("team/"+name))
}

// UserID returns the id the seeder assigns to the sample user with email
func UserID(email string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("user/"+email))
}

// BudgetID returns the id the seeder assigns to the named budget of a sample team
func BudgetID(team, name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("budget/"+team+"/"+name))
}

type sampleUser struct {
	Team  string
	Name  string
	Email string
	Role  domain.Role
}

type sampleBudget struct {
	Team       string
	Name       string
	Total      string
	ValidFrom  time.Time
	ValidUntil time.Time
}

type sampleTransaction struct {
	Team        string
	Budget      string
	UserEmail   string
	Amount      string
	Description string
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

var sampleTeams = []string{"Rubberduck", "Phoenix", "Kraken"}

var sampleUsers = []sampleUser{
	{Team: "Rubberduck", Name: "A. Feather", Email: "a.feather@diks.net", Role: domain.RoleAdmin},
	{Team: "Rubberduck", Name: "B. Quack", Email: "b.quack@diks.net", Role: domain.RoleMember},
	{Team: "Rubberduck", Name: "C. Mallard", Email: "c.mallard@diks.net", Role: domain.RoleMember},
	{Team: "Rubberduck", Name: "D. Duckling", Email: "d.duckling@diks.net", Role: domain.RoleMember},
	{Team: "Rubberduck", Name: "E. Swan", Email: "e.swan@diks.net", Role: domain.RoleMember},
	{Team: "Rubberduck", Name: "F. Goose", Email: "f.goose@diks.net", Role: domain.RoleAdmin},
	{Team: "Phoenix", Name: "P. Fire", Email: "p.fire@diks.net", Role: domain.RoleAdmin},
	{Team: "Phoenix", Name: "R. Ash", Email: "r.ash@diks.net", Role: domain.RoleMember},
	{Team: "Phoenix", Name: "S. Ember", Email: "s.ember@diks.net", Role: domain.RoleMember},
	{Team: "Kraken", Name: "K. Deep", Email: "k.deep@diks.net", Role: domain.RoleAdmin},
	{Team: "Kraken", Name: "T. Tide", Email: "t.tide@diks.net", Role: domain.RoleMember},
	{Team: "Kraken", Name: "W. Wave", Email: "w.wave@diks.net", Role: domain.RoleMember},
}

var sampleBudgets = []sampleBudget{
	{Team: "Rubberduck", Name: "Annual 2025", Total: "200.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 12, 31)},
	{Team: "Rubberduck", Name: "Summer 2025", Total: "100.00", ValidFrom: day(2025, 6, 1), ValidUntil: day(2025, 8, 31)},
	{Team: "Rubberduck", Name: "Hardware & Software Budget 2025", Total: "3000.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 6, 30)},
	{Team: "Rubberduck", Name: "Team Training Budget Q1 2025", Total: "1200.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 3, 31)},
	{Team: "Phoenix", Name: "Annual Budget 2025", Total: "8000.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 12, 31)},
	{Team: "Phoenix", Name: "Innovation Budget 2025", Total: "4500.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 12, 31)},
	{Team: "Kraken", Name: "Annual Budget 2025", Total: "6500.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 12, 31)},
	{Team: "Kraken", Name: "Research & Development 2025", Total: "3200.00", ValidFrom: day(2025, 1, 1), ValidUntil: day(2025, 9, 30)},
}

var sampleTransactions = []sampleTransaction{
	{Team: "Rubberduck", Budget: "Annual 2025", UserEmail: "a.feather@diks.net", Amount: "71.00", Description: "Team lunch for project milestone"},
	{Team: "Rubberduck", Budget: "Summer 2025", UserEmail: "b.quack@diks.net", Amount: "71.00", Description: "Conference registration fees"},
	{Team: "Rubberduck", Budget: "Annual 2025", UserEmail: "a.feather@diks.net", Amount: "38.00", Description: "Office supplies for Q1"},
	{Team: "Rubberduck", Budget: "Hardware & Software Budget 2025", UserEmail: "a.feather@diks.net", Amount: "299.99", Description: "JetBrains IntelliJ IDEA license renewal"},
	{Team: "Rubberduck", Budget: "Hardware & Software Budget 2025", UserEmail: "d.duckling@diks.net", Amount: "159.99", Description: "External monitor stand for workstation"},
	{Team: "Rubberduck", Budget: "Team Training Budget Q1 2025", UserEmail: "c.mallard@diks.net", Amount: "299.00", Description: "React Advanced Patterns online course"},
	{Team: "Rubberduck", Budget: "Annual 2025", UserEmail: "b.quack@diks.net", Amount: "89.90", Description: "Team coffee subscription"},
	{Team: "Phoenix", Budget: "Annual Budget 2025", UserEmail: "p.fire@diks.net", Amount: "750.00", Description: "AWS cloud infrastructure monthly bill"},
	{Team: "Phoenix", Budget: "Innovation Budget 2025", UserEmail: "r.ash@diks.net", Amount: "1250.00", Description: "Machine learning model training credits"},
	{Team: "Phoenix", Budget: "Annual Budget 2025", UserEmail: "s.ember@diks.net", Amount: "320.00", Description: "Team building event"},
	{Team: "Kraken", Budget: "Annual Budget 2025", UserEmail: "k.deep@diks.net", Amount: "890.00", Description: "Database hosting and maintenance"},
	{Team: "Kraken", Budget: "Research & Development 2025", UserEmail: "t.tide@diks.net", Amount: "450.00", Description: "Research paper access and publications"},
	{Team: "Kraken", Budget: "Annual Budget 2025", UserEmail: "w.wave@diks.net", Amount: "125.00", Description: "Software license renewals"},
}

// Debiter records a transaction against a specific budget
type Debiter interface {
	Apply(ctx context.Context, input ledger.ApplyInput) (*ledger.ApplyResult, error)
}

// Summary counts the records a Seed call created
type Summary struct {
	Teams        int
	Users        int
	Budgets      int
	Transactions int
}

// SampleSeeder loads the demo teams, users, budgets and transactions
type SampleSeeder struct {
	TeamRepo   domain.TeamRepository
	UserRepo   domain.UserRepository
	BudgetRepo domain.BudgetRepository
	Ledger     Debiter
	Logger     *zap.Logger
}

// NewSampleSeeder creates a new SampleSeeder instance
func NewSampleSeeder(
	teamRepo domain.TeamRepository,
	userRepo domain.UserRepository,
	budgetRepo domain.BudgetRepository,
	debiter Debiter,
	logger *zap.Logger,
) *SampleSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SampleSeeder{
		TeamRepo:   teamRepo,
		UserRepo:   userRepo,
		BudgetRepo: budgetRepo,
		Ledger:     debiter,
		Logger:     logger,
	}
}

// Seed creates every sample record that does not exist yet.
// Sample transactions are only recorded against budgets created by this call,
// so running Seed again never debits twice.
func (s *SampleSeeder) Seed(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	now := time.Now().UTC()

	for _, name := range sampleTeams {
		created, err := ensure(ctx, domain.ErrTeamNotFound,
			func() error { _, err := s.TeamRepo.GetByID(ctx, TeamID(name)); return err },
			func() error { return s.createTeam(ctx, name, now) },
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed team %s: %w", name, err)
		}
		if created {
			summary.Teams++
		}
	}

	for _, u := range sampleUsers {
		created, err := ensure(ctx, domain.ErrUserNotFound,
			func() error { _, err := s.UserRepo.GetByID(ctx, UserID(u.Email)); return err },
			func() error { return s.createUser(ctx, u, now) },
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
		if created {
			summary.Users++
		}
	}

	fresh := make(map[uuid.UUID]bool)
	for _, b := range sampleBudgets {
		created, err := ensure(ctx, domain.ErrBudgetNotFound,
			func() error { _, err := s.BudgetRepo.GetByID(ctx, BudgetID(b.Team, b.Name)); return err },
			func() error { return s.createBudget(ctx, b, now) },
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed budget %s/%s: %w", b.Team, b.Name, err)
		}
		if created {
			fresh[BudgetID(b.Team, b.Name)] = true
			summary.Budgets++
		}
	}

	for i, tx := range sampleTransactions {
		budgetID := BudgetID(tx.Team, tx.Budget)
		if !fresh[budgetID] {
			continue
		}

		budget, err := s.BudgetRepo.GetByID(ctx, budgetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load budget %s/%s: %w", tx.Team, tx.Budget, err)
		}

		_, err = s.Ledger.Apply(ctx, ledger.ApplyInput{
			BudgetID:    budgetID,
			UserID:      UserID(tx.UserEmail),
			Amount:      decimal.RequireFromString(tx.Amount),
			Description: tx.Description,
			AsOf:        budget.ValidFrom.Add(time.Duration(i+1) * time.Hour),
		})
		if errors.Is(err, domain.ErrIneligible) {
			s.Logger.Debug("skipping sample transaction", zap.String("budget", tx.Budget), zap.String("amount", tx.Amount))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to seed transaction %q: %w", tx.Description, err)
		}
		summary.Transactions++
	}

	s.Logger.Info("sample data seeded",
		zap.Int("teams", summary.Teams),
		zap.Int("users", summary.Users),
		zap.Int("budgets", summary.Budgets),
		zap.Int("transactions", summary.Transactions),
	)

	return summary, nil
}

// ensure runs create when get reports notFound and reports whether it did
func ensure(ctx context.Context, notFound error, get, create func() error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := get()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, notFound) {
		return false, err
	}

	if err := create(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SampleSeeder) createTeam(ctx context.Context, name string, now time.Time) error {
	team := &domain.Team{
		ID:        TeamID(name),
		Name:      name,
		CreatedAt: now,
	}

	if err := team.Validate(); err != nil {
		return err
	}

	return s.TeamRepo.Create(ctx, team)
}

func (s *SampleSeeder) createUser(ctx context.Context, u sampleUser, now time.Time) error {
	user := &domain.User{
		ID:        UserID(u.Email),
		TeamID:    TeamID(u.Team),
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return err
	}

	return s.UserRepo.Create(ctx, user)
}

func (s *SampleSeeder) createBudget(ctx context.Context, b sampleBudget, now time.Time) error {
	budget := domain.NewBudget(TeamID(b.Team), b.Name, decimal.RequireFromString(b.Total), b.ValidFrom, b.ValidUntil)
	budget.ID = BudgetID(b.Team, b.Name)
	budget.CreatedAt = now
	budget.UpdatedAt = now

	if err := budget.Validate(); err != nil {
		return err
	}

	return s.BudgetRepo.Create(ctx, budget)
}
