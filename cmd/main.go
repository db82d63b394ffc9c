package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angeloszaimis/ab-router/config"
	"github.com/angeloszaimis/ab-router/internal/assignment"
	"github.com/angeloszaimis/ab-router/internal/backend"
	"github.com/angeloszaimis/ab-router/internal/directory"
	"github.com/angeloszaimis/ab-router/internal/handler"
	"github.com/angeloszaimis/ab-router/internal/healthcheck"
	"github.com/angeloszaimis/ab-router/internal/httpserver"
	"github.com/angeloszaimis/ab-router/internal/metrics"
	"github.com/angeloszaimis/ab-router/internal/rewrite"
	"github.com/angeloszaimis/ab-router/internal/upstream"
	"github.com/angeloszaimis/ab-router/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", slog.Any("err", err))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)
	durations := cfg.Durations()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prom, err := metrics.NewPrometheus(registry, "ab_router")
	if err != nil {
		log.Error("Failed to register metrics", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, prom, log)
	collector.Start(ctx)

	client := upstream.NewClient(durations.UpstreamTimeout)
	dir := directory.New(cfg.Directory.URL, durations.DirectoryCacheTTL, client, log)
	backends := backend.NewRegistry(client)

	// Counters live as long as this process; a restart starts the split from zero.
	engine := assignment.NewEngine(assignment.NewCounters(), createPolicy(log, cfg.Assignment.Policy))

	abHandler := handler.NewABTestHandler(log, dir, engine, backends, rewrite.Default(), collector,
		durations.CookieMaxAge, durations.CacheMaxAge)

	go healthcheck.Probe(ctx, dir, backends, durations.HealthCheckInterval, collector, log)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(abHandler),
		httpserver.WithWriteTimeout(2*durations.UpstreamTimeout+5*time.Second))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	admin, err := httpserver.New(cfg.Admin.Address,
		setupAdminRouter(collector, registry, cfg.Assignment.Policy, engine, dir, backends))
	if err != nil {
		log.Error("Failed to create admin server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 2)

	go func() {
		srvErrCh <- srv.Start()
	}()
	go func() {
		srvErrCh <- admin.Start()
	}()

	log.Info("Router started",
		slog.String("address", srv.Addr()),
		slog.String("admin", admin.Addr()),
		slog.String("directory", cfg.Directory.URL),
		slog.String("policy", cfg.Assignment.Policy))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting listener", slog.Any("err", err))
		}
		cancel()
	}

	for _, s := range []*httpserver.Server{srv, admin} {
		if err := s.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.String("address", s.Addr()), slog.Any("err", err))
		}
	}
}

func createPolicy(logger *slog.Logger, policy string) assignment.Policy {
	switch policy {
	case config.PolicyLeastAssigned:
		return assignment.NewLeastAssignedPolicy()
	case config.PolicyRandom:
		return assignment.NewRandomPolicy()
	default:
		logger.Warn("Unknown assignment policy, defaulting to least-assigned", slog.String("requested", policy))
		return assignment.NewLeastAssignedPolicy()
	}
}
