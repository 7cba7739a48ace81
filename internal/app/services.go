// Package app assembles the service graph shared by the api and cron binaries.
package app

import (
	"fmt"
	"time"

	"github.com/angelmondragon/backoffice-backend/internal/baskets"
	"github.com/angelmondragon/backoffice-backend/internal/directory"
	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/internal/orders"
	"github.com/angelmondragon/backoffice-backend/internal/payments"
	"github.com/angelmondragon/backoffice-backend/internal/stock"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
	"github.com/prometheus/client_golang/prometheus"
)

// Options carries the optional collaborators of the graph.
type Options struct {
	Registerer prometheus.Registerer
	Exporter   income.Exporter
	Clock      func() time.Time
}

// Services is the wired domain layer.
type Services struct {
	Outbox    *outbox.Service
	Stock     *stock.Service
	Income    *income.Service
	Payments  payments.Service
	Directory *directory.Directory
	Orders    orders.Service
	Baskets   baskets.Service
}

func NewServices(cfg *config.Config, logg *logger.Logger, client *db.Client, opts Options) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	conn := client.DB()

	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	incomeSvc, err := income.NewService(income.ServiceParams{
		Repository:   income.NewRepository(conn),
		DB:           client,
		Exporter:     opts.Exporter,
		Logger:       logg,
		Clock:        opts.Clock,
		SweepMaxDays: cfg.Income.SweepMaxDays,
	})
	if err != nil {
		return nil, fmt.Errorf("income service: %w", err)
	}

	var stockMetrics *metrics.StockMetrics
	if opts.Registerer != nil {
		stockMetrics = metrics.NewStockMetrics(opts.Registerer)
	}
	stockSvc, err := stock.NewService(stock.ServiceParams{
		Repository: stock.NewRepository(conn),
		DB:         client,
		Outbox:     outboxSvc,
		Income:     incomeSvc,
		Metrics:    stockMetrics,
		Logger:     logg,
		Clock:      opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("stock service: %w", err)
	}

	paymentSvc, err := payments.NewService(payments.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	dir := directory.New(conn)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository:       orders.NewRepository(conn),
		DB:               client,
		Outbox:           outboxSvc,
		Stock:            stockSvc,
		Income:           incomeSvc,
		Payments:         paymentSvc,
		Directory:        dir,
		Logger:           logg,
		Clock:            opts.Clock,
		ExpirationWindow: cfg.Orders.ExpirationWindow,
		CodeAttempts:     cfg.Orders.CodeAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	basketSvc, err := baskets.NewService(baskets.ServiceParams{
		Repository: baskets.NewRepository(conn),
		DB:         client,
		Outbox:     outboxSvc,
		Stock:      stockSvc,
		Orders:     orderSvc,
		Logger:     logg,
		Clock:      opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("baskets service: %w", err)
	}

	return &Services{
		Outbox:    outboxSvc,
		Stock:     stockSvc,
		Income:    incomeSvc,
		Payments:  paymentSvc,
		Directory: dir,
		Orders:    orderSvc,
		Baskets:   basketSvc,
	}, nil
}
