package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"

	grpcadapter "github.com/simaogato/budgetpool-backend/internal/adapter/grpc"
	"github.com/simaogato/budgetpool-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/budgetpool-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/budgetpool-backend/internal/config"
	"github.com/simaogato/budgetpool-backend/internal/domain"
	"github.com/simaogato/budgetpool-backend/internal/logging"
	"github.com/simaogato/budgetpool-backend/internal/telemetry"
	"github.com/simaogato/budgetpool-backend/internal/usecase/allocator"
	"github.com/simaogato/budgetpool-backend/internal/usecase/ledger"
	"github.com/simaogato/budgetpool-backend/internal/usecase/overview"
	"github.com/simaogato/budgetpool-backend/internal/usecase/purchase"
	"github.com/simaogato/budgetpool-backend/internal/usecase/seeder"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 5 * time.Second
)

// repositories is the store selected by STORE_DRIVER
type repositories struct {
	teams        domain.TeamRepository
	users        domain.UserRepository
	budgets      domain.BudgetRepository
	transactions domain.TransactionRepository
	ledger       domain.LedgerStore
	pinger       grpcadapter.Pinger
	closer       io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// 1. Tracing
	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// 2. Store
	repos, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.closer.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// 3. Services
	opts := purchase.DefaultOptions()
	opts.Ceiling = cfg.AmountCeiling
	opts.MaxAttempts = cfg.PurchaseMaxAttempts
	opts.Timeout = cfg.PurchaseTimeout

	budgetLedger := ledger.NewLedger(repos.ledger, cfg.AmountCeiling)
	purchaseService := purchase.NewPurchaseService(
		allocator.NewAllocator(repos.budgets),
		budgetLedger,
		repos.teams,
		repos.users,
		logger.Named("purchase"),
		opts,
	)
	overviewService := overview.NewOverviewService(repos.teams, repos.users, repos.budgets, repos.transactions)

	if cfg.SeedSampleData {
		sampleSeeder := seeder.NewSampleSeeder(repos.teams, repos.users, repos.budgets, budgetLedger, logger.Named("seeder"))
		if _, err := sampleSeeder.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed sample data: %w", err)
		}
	}

	// 4. gRPC server
	grpcServer, healthServer := grpcadapter.NewGRPCServer(
		grpcadapter.NewServer(purchaseService, overviewService, logger.Named("grpc")),
		cfg.APIToken,
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go grpcadapter.WatchHealth(watchCtx, healthServer, repos.pinger, healthCheckInterval, logger.Named("health"))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		serveErr <- grpcServer.Serve(lis)
	}()

	return waitForShutdown(logger, grpcServer, healthServer, serveErr)
}

func openStore(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &repositories{
			teams:        sqlite.NewTeamRepository(db),
			users:        sqlite.NewUserRepository(db),
			budgets:      sqlite.NewBudgetRepository(db),
			transactions: sqlite.NewTransactionRepository(db),
			ledger:       sqlite.NewLedgerStore(db),
			pinger:       db,
			closer:       db,
		}, nil
	default:
		db, err := postgres.NewDB(cfg.PostgresConnString())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &repositories{
			teams:        postgres.NewTeamRepository(db),
			users:        postgres.NewUserRepository(db),
			budgets:      postgres.NewBudgetRepository(db),
			transactions: postgres.NewTransactionRepository(db),
			ledger:       postgres.NewLedgerStore(db),
			pinger:       db,
			closer:       db,
		}, nil
	}
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(logger *zap.Logger, grpcServer *grpclib.Server, healthServer *health.Server, serveErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve gRPC server: %w", err)
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", zap.String("signal", sig.String()))
	}

	// Reports NOT_SERVING and ignores later updates from the store watch
	healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing")
		grpcServer.Stop()
	}

	logger.Info("gRPC server stopped")
	return nil
}
