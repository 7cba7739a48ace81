package income

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

const DefaultSweepMaxDays = 366

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Exporter streams freshly upserted records to an analytics sink.
type Exporter interface {
	ExportIncome(ctx context.Context, records []models.IncomeRecord) error
}

type ServiceParams struct {
	Repository   *Repository
	DB           txRunner
	Exporter     Exporter
	Logger       *logger.Logger
	Clock        func() time.Time
	SweepMaxDays int
}

// Service derives daily income records from the supply and sales ledgers.
type Service struct {
	repo         *Repository
	tx           txRunner
	exporter     Exporter
	logg         *logger.Logger
	now          func() time.Time
	sweepMaxDays int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("income repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	maxDays := params.SweepMaxDays
	if maxDays <= 0 {
		maxDays = DefaultSweepMaxDays
	}
	return &Service{
		repo:         params.Repository,
		tx:           params.DB,
		exporter:     params.Exporter,
		logg:         params.Logger,
		now:          clock,
		sweepMaxDays: maxDays,
	}, nil
}

// Generate computes the record of one day without persisting it.
func (s *Service) Generate(ctx context.Context, day, month, year int) (*models.IncomeRecord, error) {
	key, err := dayKey(day, month, year)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, s.repo, key)
}

func (s *Service) generate(ctx context.Context, repo *Repository, key types.DayKey) (*models.IncomeRecord, error) {
	total := zeroDelta()

	entries, err := repo.SupplyEntriesBetween(ctx, key.Start(), key.End())
	if err != nil {
		return nil, pkgerrors.Internal(err, "load supply entries")
	}
	for _, entry := range entries {
		total = total.Add(SupplyDelta(entry))
	}

	sales, err := repo.SettledSales(ctx, key)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load settled sales")
	}
	basketIDs := make([]uuid.UUID, 0, len(sales))
	for _, sale := range sales {
		basketIDs = append(basketIDs, sale.BasketID)
	}
	items, err := repo.LineItemsForBaskets(ctx, basketIDs)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load sold line items")
	}
	itemsByBasket := make(map[uuid.UUID][]models.BasketLineItem, len(sales))
	for _, item := range items {
		itemsByBasket[item.BasketID] = append(itemsByBasket[item.BasketID], item)
	}
	for _, sale := range sales {
		total = total.Add(SaleDelta(sale.Channel, sale.TotalQuantity, sale.TotalPrice, itemsByBasket[sale.BasketID]))
	}

	return &models.IncomeRecord{
		Day:                key.Day,
		Month:              key.Month,
		Year:               key.Year,
		TotalSupply:        total.Supply,
		WebOrderSale:       total.Web,
		DirectPurchaseSale: total.Direct,
		TotalIncome:        total.Income,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

// Upsert recomputes the day from scratch and stores it, replacing any record
// with the same key.
func (s *Service) Upsert(ctx context.Context, day, month, year int) (*models.IncomeRecord, error) {
	key, err := dayKey(day, month, year)
	if err != nil {
		return nil, err
	}
	var stored *models.IncomeRecord
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		stored, err = s.upsertTx(ctx, s.repo.WithTx(tx), key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Service) upsertTx(ctx context.Context, repo *Repository, key types.DayKey) (*models.IncomeRecord, error) {
	if err := repo.LockDay(ctx, key); err != nil {
		return nil, pkgerrors.Internal(err, "lock income day")
	}
	record, err := s.generate(ctx, repo, key)
	if err != nil {
		return nil, err
	}
	if err := repo.Upsert(ctx, record); err != nil {
		return nil, pkgerrors.Internal(err, "upsert income record")
	}
	stored, err := repo.FindByDay(ctx, key)
	if err != nil || stored == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload income record")
	}
	return stored, nil
}

// Get returns the stored record of the day.
func (s *Service) Get(ctx context.Context, day, month, year int) (*models.IncomeRecord, error) {
	key, err := dayKey(day, month, year)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindByDay(ctx, key)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load income record")
	}
	if record == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no income record for %s", key)
	}
	return record, nil
}

// ApplyOrder adds the order's contribution to the record of its bucket when
// that record exists. It reports whether a record was touched.
func (s *Service) ApplyOrder(ctx context.Context, tx *gorm.DB, sale OrderSale) (bool, error) {
	return s.applyDelta(ctx, tx, sale.Order.DayKey(), sale.Contribution())
}

// ReverseOrder subtracts exactly what ApplyOrder added.
func (s *Service) ReverseOrder(ctx context.Context, tx *gorm.DB, sale OrderSale) (bool, error) {
	return s.applyDelta(ctx, tx, sale.Order.DayKey(), sale.Contribution().Negate())
}

// ApplySupply adds one lineage entry to the record of the day it was added.
func (s *Service) ApplySupply(ctx context.Context, tx *gorm.DB, entry models.SupplyEntry) error {
	_, err := s.applyDelta(ctx, tx, types.DayKeyFor(entry.AddedAt), SupplyDelta(entry))
	return err
}

func (s *Service) applyDelta(ctx context.Context, tx *gorm.DB, key types.DayKey, d Delta) (bool, error) {
	repo := s.repo.WithTx(tx)
	if err := repo.LockDay(ctx, key); err != nil {
		return false, pkgerrors.Internal(err, "lock income day")
	}
	touched, err := repo.AddDelta(ctx, key, d)
	if err != nil {
		return false, pkgerrors.Internal(err, "apply income delta")
	}
	if touched {
		s.logg.Debug(s.logg.WithField(ctx, "income_day", key.String()), "income record adjusted")
	}
	return touched, nil
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Upserted []models.IncomeRecord
	Exported bool
}

// Sweep refreshes today and walks backward until it reaches a day that already
// has a record, upserting each missing day. The walk is bounded by the
// configured number of days.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	key := types.DayKeyFor(now)

	today, err := s.Upsert(ctx, key.Day, key.Month, key.Year)
	if err != nil {
		return result, err
	}
	result.Upserted = append(result.Upserted, *today)

	for i := 0; i < s.sweepMaxDays; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key = key.Prev()
		exists, err := s.repo.Exists(ctx, key)
		if err != nil {
			return result, pkgerrors.Internal(err, "check income record")
		}
		if exists {
			break
		}
		record, err := s.Upsert(ctx, key.Day, key.Month, key.Year)
		if err != nil {
			return result, err
		}
		result.Upserted = append(result.Upserted, *record)
	}

	var errs error
	if s.exporter != nil {
		if err := s.exporter.ExportIncome(ctx, result.Upserted); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "export income records"))
		} else {
			result.Exported = true
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"upserted":  len(result.Upserted),
		"walked_to": key.String(),
		"exported":  result.Exported,
	})
	s.logg.Info(logCtx, "income sweep completed")
	return result, errs
}

func dayKey(day, month, year int) (types.DayKey, error) {
	key, err := types.NewDayKey(day, month, year)
	if err != nil {
		return types.DayKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return key, nil
}
