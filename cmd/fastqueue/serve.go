package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/fastqueue/fastqueue/internal/api"
	"github.com/fastqueue/fastqueue/internal/broker"
	"github.com/fastqueue/fastqueue/internal/cleanup"
	"github.com/fastqueue/fastqueue/internal/config"
	"github.com/fastqueue/fastqueue/internal/logging"
	"github.com/fastqueue/fastqueue/internal/metrics"
	"github.com/fastqueue/fastqueue/internal/observability"
	"github.com/fastqueue/fastqueue/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the fastqueue HTTP server and cleanup scheduler",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)
	logging.SetLevelFromString(cfg.Logging.Level)
	log := logging.Op()

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.Shutdown(context.Background())

	if cfg.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Metrics.Namespace)
	}

	db, err := store.New(ctx, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	topics := broker.NewTopicManager(db)
	queues := broker.NewQueueManagerWithLimits(db, cfg.Limits.ToBrokerLimits())
	messages := broker.NewMessageBroker(db)

	var lock cleanup.Lock
	if cfg.Cleanup.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Cleanup.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		lock = cleanup.NewRedisLock(redis.NewClient(opt))
	} else {
		log.Warn("cleanup scheduler running without a distributed lock; safe only with a single replica")
	}

	scheduler := cleanup.New(db, lock)
	if err := scheduler.Start(ctx, cfg.Cleanup.IntervalSeconds); err != nil {
		return fmt.Errorf("start cleanup scheduler: %w", err)
	}
	defer scheduler.Stop()

	handler := api.NewServer(api.Dependencies{
		Topics:   topics,
		Queues:   queues,
		Messages: messages,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("fastqueue listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
