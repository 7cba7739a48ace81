package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/pkg/bigquery"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/migrate"
	"github.com/angelmondragon/backoffice-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

// Runtime is what every binary needs before wiring its own loop: config, a
// configured logger and an open database. Resources opened through it are
// closed in reverse order by Close.
type Runtime struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	closers []func() error
}

// Boot loads .env and config, then opens the database and applies dev
// migrations. The service name tags every log line.
func Boot(ctx context.Context, service string) (*Runtime, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Service.Kind = service

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	rt.DB, err = db.New(ctx, cfg.DB, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connecting database: %w", err)
	}
	rt.OnClose(rt.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, rt.DB); err != nil {
		return nil, multierr.Append(fmt.Errorf("dev migrations: %w", err), rt.Close())
	}
	return rt, nil
}

// OnClose registers fn to run during Close.
func (rt *Runtime) OnClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse registration order.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	rt.closers = nil
	return err
}

// Redis connects to the configured redis and schedules its close.
func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connecting redis: %w", err)
	}
	rt.OnClose(client.Close)
	return client, nil
}

// IncomeExporter returns the BigQuery income exporter, or nil when the
// export is switched off.
func (rt *Runtime) IncomeExporter(ctx context.Context) (income.Exporter, error) {
	if !rt.Config.BigQuery.ExportIncome {
		return nil, nil
	}
	client, err := bigquery.NewClient(ctx, rt.Config.GCP, rt.Config.BigQuery, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connecting bigquery: %w", err)
	}
	rt.OnClose(client.Close)
	exporter, err := bigquery.NewIncomeExporter(client)
	if err != nil {
		return nil, err
	}
	return exporter, nil
}

// ServeMetrics exposes gatherer on Config.Metrics.Addr until ctx ends.
// It returns right away when no address is configured.
func (rt *Runtime) ServeMetrics(ctx context.Context, gatherer prometheus.Gatherer) {
	addr := rt.Config.Metrics.Addr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		metricsCtx := rt.Logger.WithField(ctx, "metrics_addr", addr)
		rt.Logger.Info(metricsCtx, "serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error(metricsCtx, "metrics listener stopped", err)
		}
	}()
}
