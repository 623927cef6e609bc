package grpc

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/budgetpool-backend/internal/domain"
	"github.com/simaogato/budgetpool-backend/internal/usecase/overview"
	"github.com/simaogato/budgetpool-backend/internal/usecase/purchase"
)

// Server implements the BudgetService gRPC server
type Server struct {
	PurchaseService *purchase.PurchaseService
	OverviewService *overview.OverviewService
	Logger          *zap.Logger
	Now             func() time.Time
}

// NewServer creates a new gRPC server instance
func NewServer(
	purchaseService *purchase.PurchaseService,
	overviewService *overview.OverviewService,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		PurchaseService: purchaseService,
		OverviewService: overviewService,
		Logger:          logger,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

// NewGRPCServer builds a grpc.Server with tracing, authentication, health and reflection
func NewGRPCServer(server *Server, apiToken string) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(AuthInterceptor(apiToken)),
	)

	RegisterBudgetServiceServer(s, server)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(s)

	return s, healthServer
}

// Purchase handles the Purchase RPC
func (s *Server) Purchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	teamID, err := uuidField(req, "team_id")
	if err != nil {
		return nil, err
	}

	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}

	amount, err := amountField(req)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	result, err := s.PurchaseService.Purchase(ctx, purchase.PurchaseInput{
		TeamID:      teamID,
		UserID:      userID,
		Amount:      amount,
		Description: stringField(req, "description"),
		Now:         now,
	})
	if err != nil {
		return nil, s.fail(PurchaseFullMethodName, err)
	}

	return newStruct(map[string]any{
		"transaction":             transactionToMap(result.Transaction),
		"selected_budget":         budgetToMap(overview.NewBudgetView(result.SelectedBudget, now)),
		"remaining_budget_amount": result.RemainingBudgetAmount.StringFixed(domain.AmountDecimalPlaces),
	})
}

// ListBudgets handles the ListBudgets RPC
func (s *Server) ListBudgets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	teamID, err := uuidField(req, "team_id")
	if err != nil {
		return nil, err
	}

	views, err := s.OverviewService.ListBudgets(ctx, teamID, s.Now())
	if err != nil {
		return nil, s.fail(ListBudgetsFullMethodName, err)
	}

	budgets := make([]any, 0, len(views))
	for _, view := range views {
		budgets = append(budgets, budgetToMap(view))
	}

	return newStruct(map[string]any{"budgets": budgets})
}

// ListTransactions handles the ListTransactions RPC
func (s *Server) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	teamID, err := uuidField(req, "team_id")
	if err != nil {
		return nil, err
	}

	limit, err := countField(req, "limit")
	if err != nil {
		return nil, err
	}

	transactions, err := s.OverviewService.ListTransactions(ctx, teamID, limit)
	if err != nil {
		return nil, s.fail(ListTransactionsFullMethodName, err)
	}

	items := make([]any, 0, len(transactions))
	for _, tx := range transactions {
		items = append(items, transactionToMap(tx))
	}

	return newStruct(map[string]any{"transactions": items})
}

// ListUsers handles the ListUsers RPC
func (s *Server) ListUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	teamID, err := uuidField(req, "team_id")
	if err != nil {
		return nil, err
	}

	users, err := s.OverviewService.ListUsers(ctx, teamID)
	if err != nil {
		return nil, s.fail(ListUsersFullMethodName, err)
	}

	items := make([]any, 0, len(users))
	for _, user := range users {
		items = append(items, userToMap(user))
	}

	return newStruct(map[string]any{"users": items})
}

// GetUser handles the GetUser RPC
func (s *Server) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}

	view, err := s.OverviewService.GetUser(ctx, userID)
	if err != nil {
		return nil, s.fail(GetUserFullMethodName, err)
	}

	user := userToMap(view.User)
	user["team"] = teamToMap(view.Team)

	return newStruct(map[string]any{"user": user})
}

// ListAllTransactions handles the ListAllTransactions RPC. user_id names the acting admin.
func (s *Server) ListAllTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}

	limit, err := countField(req, "limit")
	if err != nil {
		return nil, err
	}

	offset, err := countField(req, "offset")
	if err != nil {
		return nil, err
	}

	page, err := s.OverviewService.ListAllTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, s.fail(ListAllTransactionsFullMethodName, err)
	}

	items := make([]any, 0, len(page.Transactions))
	for _, view := range page.Transactions {
		item := transactionToMap(view.Transaction)
		item["user"] = map[string]any{
			"id":    view.User.ID.String(),
			"name":  view.User.Name,
			"email": view.User.Email,
		}
		item["budget"] = map[string]any{
			"id":   view.Budget.ID.String(),
			"name": view.Budget.Name,
		}
		item["team"] = teamToMap(view.Team)
		items = append(items, item)
	}

	return newStruct(map[string]any{
		"transactions": items,
		"pagination": map[string]any{
			"total":    page.Total,
			"limit":    page.Limit,
			"offset":   page.Offset,
			"has_more": page.HasMore,
		},
	})
}

// ListAllUsers handles the ListAllUsers RPC. user_id names the acting admin.
func (s *Server) ListAllUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}

	views, err := s.OverviewService.ListAllUsers(ctx, userID)
	if err != nil {
		return nil, s.fail(ListAllUsersFullMethodName, err)
	}

	items := make([]any, 0, len(views))
	for _, view := range views {
		user := userToMap(view.User)
		user["team"] = teamToMap(view.Team)
		items = append(items, user)
	}

	return newStruct(map[string]any{"users": items})
}

// fail logs errors the caller cannot act on and maps err to a status
func (s *Server) fail(method string, err error) error {
	if domain.KindOf(err) == domain.KindInternal && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.Logger.Error("request failed", zap.String("method", method), zap.Error(err))
	}
	return mapError(err)
}

// mapError converts domain errors to gRPC status errors.
// Internal details never reach the caller.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		switch domainErr.Kind {
		case domain.KindInvalidAmount, domain.KindInvalidDescription:
			return status.Error(codes.InvalidArgument, domainErr.Message)
		case domain.KindNoEligibleBudget, domain.KindIneligible:
			return status.Error(codes.FailedPrecondition, domain.ErrNoEligibleBudget.Message)
		case domain.KindNotFound:
			return status.Error(codes.NotFound, domainErr.Message)
		case domain.KindPermissionDenied:
			return status.Error(codes.PermissionDenied, domainErr.Message)
		case domain.KindOutcomeUnknown:
			return status.Error(codes.Unknown, domain.ErrOutcomeUnknown.Message)
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}

	return status.Error(codes.Internal, "internal error")
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	raw := stringField(req, name)
	if raw == "" {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format", name)
	}

	return id, nil
}

// countField reads an optional non-negative whole number. Absent and null read as 0.
func countField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be a whole number between 0 and %d", name, math.MaxInt32)
		}
		return int(n), nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
}

// amountField accepts the amount as a decimal string or as a number
func amountField(req *structpb.Struct) (string, error) {
	v, ok := req.GetFields()["amount"]
	if !ok {
		return "", nil
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NumberValue:
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return "", status.Error(codes.InvalidArgument, "amount must be a valid number")
		}
		return decimal.NewFromFloat(kind.NumberValue).String(), nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", status.Error(codes.InvalidArgument, "amount must be a valid number")
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func transactionToMap(tx *domain.Transaction) map[string]any {
	return map[string]any{
		"id":          tx.ID.String(),
		"budget_id":   tx.BudgetID.String(),
		"user_id":     tx.UserID.String(),
		"amount":      tx.Amount.StringFixed(domain.AmountDecimalPlaces),
		"description": tx.Description,
		"created_at":  formatTime(tx.CreatedAt),
	}
}

func budgetToMap(view overview.BudgetView) map[string]any {
	b := view.Budget
	return map[string]any{
		"id":               b.ID.String(),
		"team_id":          b.TeamID.String(),
		"name":             b.Name,
		"total_amount":     b.TotalAmount.StringFixed(domain.AmountDecimalPlaces),
		"remaining_amount": b.RemainingAmount.StringFixed(domain.AmountDecimalPlaces),
		"valid_from":       formatTime(b.ValidFrom),
		"valid_until":      formatTime(b.ValidUntil),
		"is_active":        view.IsActive,
		"usage_percentage": view.UsagePercentage,
	}
}

func teamToMap(team *domain.Team) map[string]any {
	return map[string]any{
		"id":   team.ID.String(),
		"name": team.Name,
	}
}

func userToMap(user *domain.User) map[string]any {
	return map[string]any{
		"id":      user.ID.String(),
		"team_id": user.TeamID.String(),
		"name":    user.Name,
		"email":   user.Email,
		"role":    string(user.Role),
	}
}
