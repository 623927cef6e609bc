package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/simaogato/budgetpool-backend/internal/domain"
	"github.com/simaogato/budgetpool-backend/internal/usecase/ledger"
)

var tracer = otel.Tracer("github.com/simaogato/budgetpool-backend/internal/usecase/purchase")

// BudgetSelector picks the budget that should fund a purchase
type BudgetSelector interface {
	Select(ctx context.Context, teamID uuid.UUID, amount decimal.Decimal, asOf time.Time) (uuid.UUID, error)
}

// BudgetDebiter atomically debits a budget and records the transaction
type BudgetDebiter interface {
	Apply(ctx context.Context, input ledger.ApplyInput) (*ledger.ApplyResult, error)
}

// PurchaseInput represents the input for a purchase
type PurchaseInput struct {
	TeamID      uuid.UUID
	UserID      uuid.UUID
	Amount      string
	Description string
	Now         time.Time
}

// PurchaseResult is the committed transaction and the budget it was debited from
type PurchaseResult struct {
	Transaction           *domain.Transaction
	SelectedBudget        *domain.Budget // state after the debit
	RemainingBudgetAmount decimal.Decimal
}

// Options tunes validation and retry behaviour
type Options struct {
	Ceiling              decimal.Decimal
	MaxAttempts          int
	Timeout              time.Duration // zero means no deadline beyond the caller's
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		Ceiling:              domain.DefaultAmountCeiling,
		MaxAttempts:          3,
		Timeout:              5 * time.Second,
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     100 * time.Millisecond,
	}
}

// PurchaseService handles purchases against a team's budget pool
type PurchaseService struct {
	Allocator BudgetSelector
	Ledger    BudgetDebiter
	TeamRepo  domain.TeamRepository
	UserRepo  domain.UserRepository
	Logger    *zap.Logger
	Options   Options
}

// NewPurchaseService creates a new PurchaseService instance
func NewPurchaseService(
	allocator BudgetSelector,
	ledger BudgetDebiter,
	teamRepo domain.TeamRepository,
	userRepo domain.UserRepository,
	logger *zap.Logger,
	opts Options,
) *PurchaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &PurchaseService{
		Allocator: allocator,
		Ledger:    ledger,
		TeamRepo:  teamRepo,
		UserRepo:  userRepo,
		Logger:    logger,
		Options:   opts,
	}
}

// Purchase debits amount from the best eligible budget of the team.
// Logic:
//  1. Validate amount and description before touching the store
//  2. Check that the team exists and the user is one of its members
//  3. Select a budget, then apply the debit atomically
//  4. If the budget became ineligible between selection and commit, select again,
//     up to MaxAttempts in total, then fail with domain.ErrNoEligibleBudget
//
// A commit whose outcome is unknown is returned as is and never retried.
func (s *PurchaseService) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	ctx, span := tracer.Start(ctx, "purchase.Purchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("team.id", input.TeamID.String()),
		attribute.String("user.id", input.UserID.String()),
	)

	amount, err := domain.ParseAmount(input.Amount, s.Options.Ceiling)
	if err != nil {
		return nil, err
	}

	description, err := domain.NormalizeDescription(input.Description)
	if err != nil {
		return nil, err
	}

	if s.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Options.Timeout)
		defer cancel()
	}

	log := s.Logger.With(
		zap.String("team_id", input.TeamID.String()),
		zap.String("user_id", input.UserID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)

	if err := s.checkMembership(ctx, input.TeamID, input.UserID); err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			log.Error("failed to load purchase parties", zap.Error(err))
		}
		return nil, err
	}

	pause := backoff.NewExponentialBackOff()
	pause.InitialInterval = s.Options.RetryInitialInterval
	pause.MaxInterval = s.Options.RetryMaxInterval

	for attempt := 1; attempt <= s.Options.MaxAttempts; attempt++ {
		span.SetAttributes(attribute.Int("purchase.attempt", attempt))
		attemptLog := log.With(zap.Int("attempt", attempt))

		budgetID, err := s.Allocator.Select(ctx, input.TeamID, amount, input.Now)
		if err != nil {
			if errors.Is(err, domain.ErrNoEligibleBudget) {
				return nil, domain.ErrNoEligibleBudget
			}
			attemptLog.Error("failed to select budget", zap.Error(err))
			span.RecordError(err)
			return nil, err
		}

		result, err := s.Ledger.Apply(ctx, ledger.ApplyInput{
			BudgetID:    budgetID,
			UserID:      input.UserID,
			Amount:      amount,
			Description: description,
			AsOf:        input.Now,
		})
		if err == nil {
			return &PurchaseResult{
				Transaction:           result.Transaction,
				SelectedBudget:        result.Budget,
				RemainingBudgetAmount: result.Budget.RemainingAmount,
			}, nil
		}

		attemptLog = attemptLog.With(zap.String("budget_id", budgetID.String()))
		switch {
		case errors.Is(err, domain.ErrIneligible), errors.Is(err, domain.ErrBudgetNotFound):
			// lost the race for this budget
			attemptLog.Debug("selected budget became ineligible", zap.Error(err))
			if attempt < s.Options.MaxAttempts {
				if err := wait(ctx, pause.NextBackOff()); err != nil {
					return nil, err
				}
			}
			continue
		case domain.IsValidationError(err):
			return nil, err
		case domain.KindOf(err) == domain.KindOutcomeUnknown:
			attemptLog.Error("purchase commit outcome unknown", zap.Error(err))
			span.RecordError(err)
			return nil, err
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			attemptLog.Warn("purchase abandoned before commit", zap.Error(err))
			return nil, err
		default:
			attemptLog.Error("failed to apply purchase", zap.Error(err))
			span.RecordError(err)
			return nil, fmt.Errorf("failed to apply purchase: %w", err)
		}
	}

	log.Debug("purchase attempts exhausted", zap.Int("max_attempts", s.Options.MaxAttempts))
	return nil, domain.ErrNoEligibleBudget
}

func (s *PurchaseService) checkMembership(ctx context.Context, teamID, userID uuid.UUID) error {
	if _, err := s.TeamRepo.GetByID(ctx, teamID); err != nil {
		return err
	}

	user, err := s.UserRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.BelongsTo(teamID) {
		return domain.ErrUserNotFound
	}

	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
