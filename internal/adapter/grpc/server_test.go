package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/budgetpool-backend/internal/adapter/repository/memory"
	"github.com/simaogato/budgetpool-backend/internal/domain"
	"github.com/simaogato/budgetpool-backend/internal/usecase/allocator"
	"github.com/simaogato/budgetpool-backend/internal/usecase/ledger"
	"github.com/simaogato/budgetpool-backend/internal/usecase/overview"
	"github.com/simaogato/budgetpool-backend/internal/usecase/purchase"
)

const testToken = "test-token-123"

var now = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func TestMapError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode codes.Code
		expectedMsg  string
	}{
		{
			name:         "Invalid Amount",
			err:          domain.NewInvalidAmountError("amount must be greater than 0"),
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "amount must be greater than 0",
		},
		{
			name:         "Invalid Description",
			err:          domain.NewInvalidDescriptionError("description is required"),
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "description is required",
		},
		{
			name:         "No Eligible Budget",
			err:          domain.ErrNoEligibleBudget,
			expectedCode: codes.FailedPrecondition,
			expectedMsg:  "no active budget with sufficient funds found",
		},
		{
			name:         "Ineligible Leaks As No Eligible Budget",
			err:          fmt.Errorf("apply: %w", domain.ErrIneligible),
			expectedCode: codes.FailedPrecondition,
			expectedMsg:  "no active budget with sufficient funds found",
		},
		{
			name:         "Not Found",
			err:          domain.ErrTeamNotFound,
			expectedCode: codes.NotFound,
			expectedMsg:  "team not found",
		},
		{
			name:         "Permission Denied",
			err:          fmt.Errorf("list users: %w", domain.ErrAdminRequired),
			expectedCode: codes.PermissionDenied,
			expectedMsg:  "admin role required",
		},
		{
			name:         "Outcome Unknown",
			err:          domain.NewOutcomeUnknownError(errors.New("connection reset")),
			expectedCode: codes.Unknown,
			expectedMsg:  "purchase completed, status unknown",
		},
		{
			name:         "Deadline",
			err:          fmt.Errorf("failed to begin transaction: %w", context.DeadlineExceeded),
			expectedCode: codes.DeadlineExceeded,
			expectedMsg:  "request timed out",
		},
		{
			name:         "Canceled",
			err:          context.Canceled,
			expectedCode: codes.Canceled,
			expectedMsg:  "request canceled",
		},
		{
			name:         "Internal Details Are Hidden",
			err:          errors.New("pq: password authentication failed for user \"postgres\""),
			expectedCode: codes.Internal,
			expectedMsg:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(mapError(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, st.Code())
			assert.Equal(t, tt.expectedMsg, st.Message())
		})
	}

	assert.NoError(t, mapError(nil))
}

type testEnv struct {
	client BudgetServiceClient
	health healthpb.HealthClient
	team   *domain.Team
	user   *domain.User
	admin  *domain.User
	budget *domain.Budget
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	teams := memory.NewTeamRepository(store)
	users := memory.NewUserRepository(store)
	budgets := memory.NewBudgetRepository(store)
	transactions := memory.NewTransactionRepository(store)

	env := &testEnv{
		team: &domain.Team{ID: uuid.New(), Name: "Engineering", CreatedAt: now},
	}
	require.NoError(t, teams.Create(ctx, env.team))
	env.user = &domain.User{ID: uuid.New(), TeamID: env.team.ID, Name: "Alice", Email: "alice@example.com", Role: domain.RoleMember, CreatedAt: now}
	require.NoError(t, users.Create(ctx, env.user))
	env.admin = &domain.User{ID: uuid.New(), TeamID: env.team.ID, Name: "Morgan", Email: "morgan@example.com", Role: domain.RoleAdmin, CreatedAt: now}
	require.NoError(t, users.Create(ctx, env.admin))
	env.budget = domain.NewBudget(env.team.ID, "Q3 Tools", decimal.NewFromInt(500), now.AddDate(0, -1, 0), now.AddDate(0, 2, 0))
	require.NoError(t, budgets.Create(ctx, env.budget))

	opts := purchase.DefaultOptions()
	opts.RetryInitialInterval = time.Millisecond
	opts.RetryMaxInterval = time.Millisecond

	server := NewServer(
		purchase.NewPurchaseService(
			allocator.NewAllocator(budgets),
			ledger.NewLedger(memory.NewLedgerStore(store), opts.Ceiling),
			teams,
			users,
			zap.NewNop(),
			opts,
		),
		overview.NewOverviewService(teams, users, budgets, transactions),
		zap.NewNop(),
	)
	server.Now = func() time.Time { return now }

	lis := bufconn.Listen(1 << 20)
	grpcServer, _ := NewGRPCServer(server, testToken)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	env.client = NewBudgetServiceClient(conn)
	env.health = healthpb.NewHealthClient(conn)
	return env
}

func authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+testToken)
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return req
}

func TestServer_Purchase(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Purchase(authed(), request(t, map[string]any{
		"team_id":     env.team.ID.String(),
		"user_id":     env.user.ID.String(),
		"amount":      "100.50",
		"description": "Keyboard",
	}))
	require.NoError(t, err)

	fields := resp.AsMap()
	assert.Equal(t, "399.50", fields["remaining_budget_amount"])

	tx := fields["transaction"].(map[string]any)
	assert.Equal(t, env.budget.ID.String(), tx["budget_id"])
	assert.Equal(t, env.user.ID.String(), tx["user_id"])
	assert.Equal(t, "100.50", tx["amount"])
	assert.Equal(t, "Keyboard", tx["description"])
	assert.Equal(t, now.Format(time.RFC3339Nano), tx["created_at"])

	selected := fields["selected_budget"].(map[string]any)
	assert.Equal(t, env.budget.ID.String(), selected["id"])
	assert.Equal(t, "399.50", selected["remaining_amount"])
	assert.Equal(t, true, selected["is_active"])
	assert.Equal(t, float64(20), selected["usage_percentage"])
}

func TestServer_PurchaseAcceptsNumericAmount(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Purchase(authed(), request(t, map[string]any{
		"team_id":     env.team.ID.String(),
		"user_id":     env.user.ID.String(),
		"amount":      25.5,
		"description": "Lunch",
	}))
	require.NoError(t, err)

	assert.Equal(t, "474.50", resp.AsMap()["remaining_budget_amount"])
}

func TestServer_PurchaseErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name         string
		fields       map[string]any
		expectedCode codes.Code
		expectedMsg  string
	}{
		{
			name:         "Too Many Decimals",
			fields:       map[string]any{"amount": "100.123", "description": "Lunch"},
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "amount cannot have more than 2 decimal places",
		},
		{
			name:         "Above Ceiling",
			fields:       map[string]any{"amount": "10000.01", "description": "Lunch"},
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "amount cannot exceed 10000.00",
		},
		{
			name:         "Amount Of Wrong Type",
			fields:       map[string]any{"amount": true, "description": "Lunch"},
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "amount must be a valid number",
		},
		{
			name:         "Missing Description",
			fields:       map[string]any{"amount": "10"},
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "description is required",
		},
		{
			name:         "No Budget Covers It",
			fields:       map[string]any{"amount": "500.01", "description": "Laptop"},
			expectedCode: codes.FailedPrecondition,
			expectedMsg:  "no active budget with sufficient funds found",
		},
		{
			name:         "Unknown User",
			fields:       map[string]any{"user_id": uuid.NewString(), "amount": "10", "description": "Lunch"},
			expectedCode: codes.NotFound,
			expectedMsg:  "user not found",
		},
		{
			name:         "Malformed Team",
			fields:       map[string]any{"team_id": "not-a-uuid", "amount": "10", "description": "Lunch"},
			expectedCode: codes.InvalidArgument,
			expectedMsg:  "invalid team_id format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]any{
				"team_id": env.team.ID.String(),
				"user_id": env.user.ID.String(),
			}
			for k, v := range tt.fields {
				fields[k] = v
			}

			_, err := env.client.Purchase(authed(), request(t, fields))

			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, st.Code())
			assert.Equal(t, tt.expectedMsg, st.Message())
		})
	}
}

func TestServer_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ListBudgets(context.Background(), request(t, map[string]any{"team_id": env.team.ID.String()}))

	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_HealthWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})

	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_ReadFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := authed()

	for _, amount := range []string{"10", "20"} {
		_, err := env.client.Purchase(ctx, request(t, map[string]any{
			"team_id":     env.team.ID.String(),
			"user_id":     env.user.ID.String(),
			"amount":      amount,
			"description": "Coffee",
		}))
		require.NoError(t, err)
	}

	budgetsResp, err := env.client.ListBudgets(ctx, request(t, map[string]any{"team_id": env.team.ID.String()}))
	require.NoError(t, err)
	budgets := budgetsResp.AsMap()["budgets"].([]any)
	require.Len(t, budgets, 1)
	assert.Equal(t, "470.00", budgets[0].(map[string]any)["remaining_amount"])
	assert.Equal(t, float64(6), budgets[0].(map[string]any)["usage_percentage"])

	txResp, err := env.client.ListTransactions(ctx, request(t, map[string]any{"team_id": env.team.ID.String(), "limit": 1}))
	require.NoError(t, err)
	assert.Len(t, txResp.AsMap()["transactions"].([]any), 1)

	_, err = env.client.ListTransactions(ctx, request(t, map[string]any{"team_id": env.team.ID.String(), "limit": "ten"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	usersResp, err := env.client.ListUsers(ctx, request(t, map[string]any{"team_id": env.team.ID.String()}))
	require.NoError(t, err)
	assert.Len(t, usersResp.AsMap()["users"].([]any), 2)

	userResp, err := env.client.GetUser(ctx, request(t, map[string]any{"user_id": env.user.ID.String()}))
	require.NoError(t, err)
	user := userResp.AsMap()["user"].(map[string]any)
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, "MEMBER", user["role"])
	assert.Equal(t, "Engineering", user["team"].(map[string]any)["name"])

	_, err = env.client.ListBudgets(ctx, request(t, map[string]any{"team_id": uuid.NewString()}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_ListTransactionsRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		limit any
	}{
		{name: "fraction", limit: 2.5},
		{name: "negative", limit: -1},
		{name: "beyond int32", limit: 1e12},
		{name: "huge", limit: 1e300},
		{name: "text", limit: "ten"},
		{name: "bool", limit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.ListTransactions(authed(), request(t, map[string]any{
				"team_id": env.team.ID.String(),
				"limit":   tt.limit,
			}))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}

	resp, err := env.client.ListTransactions(authed(), request(t, map[string]any{"team_id": env.team.ID.String(), "limit": nil}))
	require.NoError(t, err)
	assert.Empty(t, resp.AsMap()["transactions"])
}

func TestServer_AdminReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := authed()

	for _, amount := range []string{"10", "20", "30"} {
		_, err := env.client.Purchase(ctx, request(t, map[string]any{
			"team_id":     env.team.ID.String(),
			"user_id":     env.user.ID.String(),
			"amount":      amount,
			"description": "Coffee",
		}))
		require.NoError(t, err)
	}

	txResp, err := env.client.ListAllTransactions(ctx, request(t, map[string]any{
		"user_id": env.admin.ID.String(),
		"limit":   2,
		"offset":  0,
	}))
	require.NoError(t, err)
	body := txResp.AsMap()
	items := body["transactions"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Alice", first["user"].(map[string]any)["name"])
	assert.Equal(t, "Q3 Tools", first["budget"].(map[string]any)["name"])
	assert.Equal(t, "Engineering", first["team"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{
		"total":    float64(3),
		"limit":    float64(2),
		"offset":   float64(0),
		"has_more": true,
	}, body["pagination"])

	lastResp, err := env.client.ListAllTransactions(ctx, request(t, map[string]any{
		"user_id": env.admin.ID.String(),
		"limit":   2,
		"offset":  2,
	}))
	require.NoError(t, err)
	assert.Len(t, lastResp.AsMap()["transactions"].([]any), 1)
	assert.Equal(t, false, lastResp.AsMap()["pagination"].(map[string]any)["has_more"])

	usersResp, err := env.client.ListAllUsers(ctx, request(t, map[string]any{"user_id": env.admin.ID.String()}))
	require.NoError(t, err)
	users := usersResp.AsMap()["users"].([]any)
	require.Len(t, users, 2)
	assert.Equal(t, "Morgan", users[0].(map[string]any)["name"])
	assert.Equal(t, "Engineering", users[1].(map[string]any)["team"].(map[string]any)["name"])

	_, err = env.client.ListAllTransactions(ctx, request(t, map[string]any{"user_id": env.user.ID.String()}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = env.client.ListAllUsers(ctx, request(t, map[string]any{"user_id": env.user.ID.String()}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = env.client.ListAllTransactions(ctx, request(t, map[string]any{"user_id": env.admin.ID.String(), "offset": 1.5}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.ListAllUsers(ctx, request(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
