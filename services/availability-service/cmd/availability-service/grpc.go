package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/config"
	"github.com/md-rashed-zaman/meetbook/libs/grpcx"
	"github.com/md-rashed-zaman/meetbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service name reported by the gRPC health endpoint.
const HealthServiceName = "meetbook.availability.v1"

func startGrpcServer(ctx context.Context, logger *slog.Logger, checks []runtime.ReadyCheck) error {
	port, err := config.Port("GRPC_PORT", "9094")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go watchHealth(ctx, logger, hs, checks, config.Duration("GRPC_HEALTH_INTERVAL", 10*time.Second))

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}

// watchHealth mirrors the /readyz checks into the gRPC health status.
func watchHealth(ctx context.Context, logger *slog.Logger, hs *health.Server, checks []runtime.ReadyCheck, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		report, ok := runtime.RunChecks(checkCtx, checks)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if !ok {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("dependencies unhealthy", "checks", report.Checks)
		}
		if status != last {
			hs.SetServingStatus("", status)
			hs.SetServingStatus(HealthServiceName, status)
			last = status
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
