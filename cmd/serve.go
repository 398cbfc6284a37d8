package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jupiterclapton/cenackle/services/timeline-service/config"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/primary/events"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/services"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the fan-out consumer and the ops gRPC endpoint",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	// 1. Logger & Télémétrie
	initLogger(cfg)
	slog.Info("🚀 Starting Timeline Service", "env", cfg.Env, "store", cfg.StoreBackend, "auth", cfg.AuthMode)

	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 2. Infrastructure: Store (Driven Adapter)
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	auth, _, err := newAuthenticator(cfg, store)
	if err != nil {
		return err
	}

	// 3. Core
	writer := services.NewBatchWriter(store)
	feedService := services.NewFeedService(store, writer, auth)

	// 4. Consumer NATS (sans NATS_URL, les posts sont distribués en process par leur producteur)
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()
		slog.Info("✅ Connected to NATS")

		handler := events.NewEventHandler(feedService, cfg.FanoutTimeout)
		if _, err := nc.Subscribe(eventbroker.SubjectPostCreated, handler.HandlePostCreated); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventbroker.SubjectPostCreated, err)
		}
		slog.Info("👂 Listening for events (NATS)", "subject", eventbroker.SubjectPostCreated)
	}

	// 5. gRPC: health + reflection uniquement
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("📡 gRPC listening", "port", cfg.GRPCPort)
		serveErr <- grpcServer.Serve(lis)
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("grpc server: %w", err)
	}
	slog.Info("🛑 Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	slog.Info("👋 Server exited")
	return nil
}
