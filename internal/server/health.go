package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "photoreceipts.Registry"

// NewGRPCServer returns a gRPC server with the standard health service registered.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}

// WatchHealth runs check every interval and mirrors the result into hs until ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, check func(context.Context) error, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	last := grpc_health_v1.HealthCheckResponse_SERVING
	probe := func() {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			logger.Warn("health.registry.failed", "error", err)
		}
		if status != last {
			logger.Info("health.status.changed", "service", ServiceName, "status", status.String())
			last = status
		}
		hs.SetServingStatus(ServiceName, status)
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
