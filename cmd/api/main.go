package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/backoffice-backend/api/routes"
	"github.com/angelmondragon/backoffice-backend/internal/app"
	"github.com/angelmondragon/backoffice-backend/pkg/env"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) (err error) {
	rt, err := app.Boot(ctx, "api")
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

	addr := ":" + listenPort(cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:          rt.DB,
			Redis:       redisClient,
			Orders:      svcs.Orders,
			Baskets:     svcs.Baskets,
			Stock:       svcs.Stock,
			Income:      svcs.Income,
			DeadLetters: outbox.NewDLQRepository(rt.DB.DB()),
			Gatherer:    prometheus.DefaultGatherer,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server draining")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logg.Info(ctx, "api server stopped")
	return nil
}

// listenPort prefers the platform-assigned PORT over the configured one.
func listenPort(configured string) string {
	return env.Get("PORT", configured)
}
