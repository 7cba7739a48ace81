package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/backoffice-backend/internal/app"
	"github.com/angelmondragon/backoffice-backend/internal/cron"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cron-worker: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := app.Boot(ctx, "cron-worker")
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			rt.Logger.Error(ctx, "closing resources", closeErr)
		}
	}()
	cfg, logg := rt.Config, rt.Logger

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	exporter, err := rt.IncomeExporter(ctx)
	if err != nil {
		return err
	}
	svcs, err := app.NewServices(cfg, logg, rt.DB, app.Options{
		Registerer: prometheus.DefaultRegisterer,
		Exporter:   exporter,
	})
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}

	registry, err := buildRegistry(rt, svcs)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
		"jobs":     len(registry.Jobs()),
	})
	rt.ServeMetrics(ctx, prometheus.DefaultGatherer)
	logg.Info(ctx, "cron worker started")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("cron worker: %w", err)
	}
	logg.Info(ctx, "cron worker stopped")
	return nil
}

func buildRegistry(rt *app.Runtime, svcs *app.Services) (*cron.Registry, error) {
	cfg, logg := rt.Config, rt.Logger

	expiration, err := cron.NewOrderExpirationJob(cron.OrderExpirationJobParams{
		Logger:    logg,
		Orders:    svcs.Orders,
		BatchSize: cfg.Orders.ExpirationBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("order expiration job: %w", err)
	}
	sweep, err := cron.NewIncomeSweepJob(cron.IncomeSweepJobParams{
		Logger: logg,
		Income: svcs.Income,
	})
	if err != nil {
		return nil, fmt.Errorf("income sweep job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          rt.DB,
		Repository:  outbox.NewRepository(rt.DB.DB()),
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return cron.NewRegistry(expiration, sweep, retention)
}

// lockName scopes the cron lease per environment so staging and production
// sharing one redis do not block each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
