// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/config"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/handlers"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/idempotency"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/lifecycle"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/observability"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/outbound"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/secureid"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/storage"
	badgerstore "github.com/robsotonet/petlovecommunity-core/services/gateway/storage/badger"
	redisstore "github.com/robsotonet/petlovecommunity-core/services/gateway/storage/redis"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/telemetry"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/upstream"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Local development convenience; production sets real env vars.
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "gateway",
		JSON:    cfg.LogJSON,
	})
	logger.Info("starting gateway",
		"addr", cfg.ListenAddr,
		"environment", cfg.Environment,
		"storage", cfg.StorageBackend)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "plc-gateway",
		Environment:    cfg.Environment,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	observability.InitMetrics()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StorageBackend, err)
	}
	defer closeStore()

	gen, err := secureid.New()
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	contexts, err := correlation.NewStore(gen, correlation.Config{
		Namespace:        cfg.Namespace,
		InactivityWindow: cfg.InactivityWindow,
		Store:            store,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("build correlation store: %w", err)
	}
	cache := idempotency.NewCache(idempotency.Config{
		Namespace: cfg.Namespace,
		Store:     store,
		Logger:    logger,
	})

	policies, watcher, err := loadPolicies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("policy watcher close", "error", err)
			}
		}()
	}

	executor, err := transaction.NewExecutor(gen, transaction.Config{
		Policies:   policies,
		Classifier: outbound.IsRetryable,
		Logger:     logger,
		Capacity:   cfg.TransactionCapacity,
	})
	if err != nil {
		return fmt.Errorf("build transaction executor: %w", err)
	}

	pipeline, err := outbound.NewPipeline(outbound.PipelineConfig{
		Contexts:            contexts,
		Cache:               cache,
		Executor:            executor,
		Logger:              logger,
		DisableIdempotency:  cfg.DisableIdempotency,
		DisableTransactions: cfg.DisableTransactions,
		DefaultExpiration:   cfg.IdempotencyExpiration,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.UpstreamRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamBurst)
	}
	breaker := outbound.NewBreaker(outbound.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	})
	transport := outbound.NewTransport(outbound.TransportConfig{
		Headers: contexts,
		Limiter: limiter,
		Breaker: breaker,
		Logger:  logger,
	})

	var credential *upstream.Credential
	if cfg.UpstreamToken != "" {
		credential = upstream.NewCredential(cfg.UpstreamToken, logger)
	}
	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.UpstreamTimeout,
		},
		Pipeline:   pipeline,
		Credential: credential,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build upstream client: %w", err)
	}

	var exporter lifecycle.StatsExporter
	if cfg.InfluxEnabled {
		exporter = lifecycle.NewInfluxExporter(lifecycle.InfluxConfig{
			URL:     cfg.InfluxURL,
			Token:   cfg.InfluxToken,
			Org:     cfg.InfluxOrg,
			Bucket:  cfg.InfluxBucket,
			Service: "gateway",
		})
	}
	manager := lifecycle.NewManager(lifecycle.Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Interval:     cfg.CleanupInterval,
		Logger:       logger,
		Exporter:     exporter,
	})
	manager.Start(ctx)
	defer manager.Stop()

	handler, err := handlers.New(handlers.Config{
		Upstream: client,
		Contexts: contexts,
		Cache:    cache,
		Executor: executor,
		Manager:  manager,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build handlers: %w", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		Handler:        handler,
		Contexts:       contexts,
		Metrics:        observability.DefaultMetrics,
		MetricsHandler: telemetry.MetricsHandler(),
		ServiceName:    "plc-gateway",
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down gateway")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore selects the durable backend. The returned closer is a no-op
// for the memory backend.
func openStore(ctx context.Context, cfg config.Config) (storage.DurableStore, func(), error) {
	switch cfg.StorageBackend {
	case "badger":
		s, err := badgerstore.Open(badgerstore.DefaultConfig(cfg.BadgerPath))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		s, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return storage.NewMemoryStore(), func() {}, nil
	}
}

// loadPolicies builds the retry policy table, layering the optional
// YAML file over the compiled-in defaults, and starts the hot-reload
// watcher when configured.
func loadPolicies(ctx context.Context, cfg config.Config, logger *logging.Logger) (*transaction.PolicyTable, *config.PolicyWatcher, error) {
	if cfg.PoliciesFile == "" {
		return transaction.DefaultPolicyTable(), nil, nil
	}

	loaded, err := config.LoadPolicies(cfg.PoliciesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load policies %s: %w", cfg.PoliciesFile, err)
	}
	table := transaction.NewPolicyTable(loaded)

	if !cfg.WatchPolicies {
		return table, nil, nil
	}
	watcher, err := config.NewPolicyWatcher(cfg.PoliciesFile, table, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("watch policies %s: %w", cfg.PoliciesFile, err)
	}
	watcher.Start(ctx)
	logger.Info("watching retry policies", "file", cfg.PoliciesFile)
	return table, watcher, nil
}

func logLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
