package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by the store connections
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WatchHealth pings the store every interval and reports SERVING while it answers,
// NOT_SERVING otherwise. It blocks until ctx is done.
func WatchHealth(ctx context.Context, healthServer *health.Server, pinger Pinger, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current := healthpb.HealthCheckResponse_SERVING
	for {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := pinger.PingContext(pingCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		next := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			next = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if next != current {
			if err != nil {
				logger.Warn("store unreachable, reporting NOT_SERVING", zap.Error(err))
			} else {
				logger.Info("store reachable again, reporting SERVING")
			}
			healthServer.SetServingStatus("", next)
			healthServer.SetServingStatus(ServiceName, next)
			current = next
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
