package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/agromart/agromart-backend/internal/analytics/router"
	"github.com/agromart/agromart-backend/internal/analytics/types"
	"github.com/agromart/agromart-backend/internal/analytics/worker"
	"github.com/agromart/agromart-backend/internal/analytics/writer"
	"github.com/agromart/agromart-backend/pkg/bigquery"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox/idempotency"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
	"github.com/agromart/agromart-backend/pkg/pubsub"
	"github.com/agromart/agromart-backend/pkg/redis"
)

const (
	serviceKind = "analytics-worker"
	// drainTimeout bounds the final BigQuery flush after the subscription stops.
	drainTimeout = 30 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker shut down")
}

// run wires the subscription to the BigQuery writer. Buffered rows are
// flushed once more on the way out, even when the signal context is done.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	if cfg.PubSub.AnalyticsSubscription == "" {
		return errors.New("analytics subscription not configured")
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, bigquery.TableSpec{
		Name:           cfg.BigQuery.NegotiationEventsTable,
		Schema:         types.NegotiationEventSchema,
		PartitionField: types.NegotiationEventPartitionField,
	})
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer func() { err = multierr.Append(err, bqClient.Close()) }()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	rowWriter, err := writer.New(bqClient, writer.Config{
		NegotiationTable: cfg.BigQuery.NegotiationEventsTable,
		BatchSize:        cfg.BigQuery.BatchSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if flushErr := rowWriter.Flush(drainCtx); flushErr != nil {
			err = multierr.Append(err, fmt.Errorf("final flush: %w", flushErr))
		}
	}()

	handler, err := router.NewRouter(rowWriter, logg)
	if err != nil {
		return err
	}
	service, err := worker.NewService(pubsubClient.AnalyticsSubscription(), eventRegistry, handler, manager, logg)
	if err != nil {
		return err
	}

	go rowWriter.RunFlusher(ctx, cfg.BigQuery.FlushInterval, func(flushErr error) {
		logg.Error(ctx, "periodic analytics flush failed", flushErr)
	})
	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.AnalyticsSubscription), "analytics worker ready")
	return service.Run(ctx)
}
