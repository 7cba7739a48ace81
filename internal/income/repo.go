package income

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/backoffice-backend/internal/repo"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// dayLockSpace namespaces the per-day advisory locks from other users of
// pg_advisory_xact_lock.
const dayLockSpace = 7301

// Repository reads the supply and sales ledgers and persists income records.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// saleRow is one settled order joined with its active basket.
type saleRow struct {
	OrderID       uuid.UUID
	Channel       enums.OrderChannel
	BasketID      uuid.UUID
	TotalQuantity int
	TotalPrice    decimal.Decimal
}

func (r *Repository) FindByDay(ctx context.Context, key types.DayKey) (*models.IncomeRecord, error) {
	var record models.IncomeRecord
	ok, err := r.First(ctx, &record, "day = ? AND month = ? AND year = ?", key.Day, key.Month, key.Year)
	if err != nil || !ok {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) Exists(ctx context.Context, key types.DayKey) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.IncomeRecord{}).
		Where("day = ? AND month = ? AND year = ?", key.Day, key.Month, key.Year).
		Count(&count).Error
	return count > 0, err
}

// SupplyEntriesBetween lists lineage entries added in [from, to).
func (r *Repository) SupplyEntriesBetween(ctx context.Context, from, to time.Time) ([]models.SupplyEntry, error) {
	var entries []models.SupplyEntry
	err := r.DB(ctx).
		Where("added_at >= ? AND added_at < ?", from, to).
		Order("added_at ASC, sequence ASC").
		Find(&entries).Error
	return entries, err
}

// SettledSales lists active settled orders of the day that still own an
// active basket.
func (r *Repository) SettledSales(ctx context.Context, key types.DayKey) ([]saleRow, error) {
	var rows []saleRow
	err := r.DB(ctx).
		Table("orders AS o").
		Select("o.id AS order_id, o.channel AS channel, b.id AS basket_id, b.total_quantity AS total_quantity, b.total_price AS total_price").
		Joins("JOIN baskets b ON b.order_id = o.id AND b.active = ?", true).
		Where("o.day = ? AND o.month = ? AND o.year = ?", key.Day, key.Month, key.Year).
		Where("o.active = ? AND o.deleted_at IS NULL", true).
		Where("o.status IN ?", enums.SettledOrderStatuses()).
		Order("o.created_at ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) LineItemsForBaskets(ctx context.Context, basketIDs []uuid.UUID) ([]models.BasketLineItem, error) {
	if len(basketIDs) == 0 {
		return nil, nil
	}
	var items []models.BasketLineItem
	err := r.DB(ctx).
		Where("basket_id IN ?", basketIDs).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// LockDay holds a transaction-scoped lock on the day key until tx ends, so a
// full recompute and an in-place delta of the same day never interleave.
// sqlite runs one writer at a time and takes no lock.
func (r *Repository) LockDay(ctx context.Context, key types.DayKey) error {
	db := r.DB(ctx)
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.Exec("SELECT pg_advisory_xact_lock(?, ?)", dayLockSpace, key.Year*10000+key.Month*100+key.Day).Error
}

// Upsert replaces the figures of the record sharing the day key, or inserts it.
func (r *Repository) Upsert(ctx context.Context, record *models.IncomeRecord) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}, {Name: "month"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"supply_items", "supply_payments",
			"web_items", "web_payments",
			"direct_items", "direct_payments",
			"total_income", "generated_at", "updated_at",
		}),
	}).Create(record).Error
}

// AddDelta adds d to the record of the day in place. It reports whether a
// record existed.
func (r *Repository) AddDelta(ctx context.Context, key types.DayKey, d Delta) (bool, error) {
	res := r.DB(ctx).Model(&models.IncomeRecord{}).
		Where("day = ? AND month = ? AND year = ?", key.Day, key.Month, key.Year).
		Updates(map[string]any{
			"supply_items":    gorm.Expr("supply_items + ?", d.Supply.Items),
			"supply_payments": gorm.Expr("supply_payments + ?", d.Supply.Payments),
			"web_items":       gorm.Expr("web_items + ?", d.Web.Items),
			"web_payments":    gorm.Expr("web_payments + ?", d.Web.Payments),
			"direct_items":    gorm.Expr("direct_items + ?", d.Direct.Items),
			"direct_payments": gorm.Expr("direct_payments + ?", d.Direct.Payments),
			"total_income":    gorm.Expr("total_income + ?", d.Income),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
