package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

const (
	OrderExpirationJobName = "order_expiration"

	defaultExpirationBatch = 200
)

type orderExpirer interface {
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	Expire(ctx context.Context, orderID uuid.UUID) error
}

// OrderExpirationJobParams configure the expiration sweep.
type OrderExpirationJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	BatchSize int
	Clock     func() time.Time
}

// NewOrderExpirationJob builds the sweep that expires unpaid orders past
// their expiration and returns their reservations to stock.
func NewOrderExpirationJob(params OrderExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpirationBatch
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderExpirationJob{
		logg:   params.Logger,
		orders: params.Orders,
		batch:  batch,
		now:    clock,
	}, nil
}

type orderExpirationJob struct {
	logg   *logger.Logger
	orders orderExpirer
	batch  int
	now    func() time.Time
}

func (j *orderExpirationJob) Name() string { return OrderExpirationJobName }

// Run expires candidates batch by batch. An order that changed status since
// it was listed is counted as skipped; other failures are collected and the
// sweep moves on. Orders left behind are paged past, and a batch with nothing
// new ends the run so failing orders wait for the next cycle.
func (j *orderExpirationJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	var (
		errs    error
		expired int
		skipped int
		failed  int
		stuck   = map[uuid.UUID]struct{}{}
	)
	for {
		limit := j.batch + len(stuck)
		candidates, err := j.orders.ListExpirable(ctx, now, limit)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list expirable orders: %w", err))
			break
		}
		handled := 0
		for _, order := range candidates {
			if _, seen := stuck[order.ID]; seen {
				continue
			}
			handled++
			err := j.orders.Expire(ctx, order.ID)
			switch {
			case err == nil:
				expired++
			case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
				skipped++
				stuck[order.ID] = struct{}{}
			default:
				failed++
				stuck[order.ID] = struct{}{}
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.Code, err))
			}
		}
		if handled == 0 || len(candidates) < limit {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired": expired,
		"skipped": skipped,
		"failed":  failed,
		"cutoff":  now,
	})
	j.logg.Info(logCtx, "order expiration sweep complete")
	return expired, errs
}
