package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/backoffice-backend/internal/repo"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
)

// Repository persists stock lots and their supply lineage.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// FindByProduct returns the lot of the product or nil when none exists.
func (r *Repository) FindByProduct(ctx context.Context, productID uuid.UUID) (*models.StockLot, error) {
	var lot models.StockLot
	ok, err := r.First(ctx, &lot, "product_id = ?", productID)
	if err != nil || !ok {
		return nil, err
	}
	return &lot, nil
}

// DecrementIfAvailable subtracts qty only when the active lot holds at least
// qty units. The check and the write are one statement.
func (r *Repository) DecrementIfAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.DB(ctx).Model(&models.StockLot{}).
		Where("product_id = ? AND active = ? AND quantity >= ?", productID, true, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Increment adds qty to the lot regardless of its active flag.
func (r *Repository) Increment(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.DB(ctx).Model(&models.StockLot{}).
		Where("product_id = ?", productID).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CreateIfAbsent inserts the lot unless another lot already owns the product.
func (r *Repository) CreateIfAbsent(ctx context.Context, lot *models.StockLot) (bool, error) {
	res := r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoNothing: true,
	}).Create(lot)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplySupply adds supplied units and takes over the supplied unit price.
func (r *Repository) ApplySupply(ctx context.Context, lotID uuid.UUID, qty int, unitPrice decimal.Decimal) error {
	res := r.DB(ctx).Model(&models.StockLot{}).
		Where("id = ?", lotID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"unit_price": unitPrice,
			"complete":   true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) SetDiscount(ctx context.Context, productID uuid.UUID, discount decimal.Decimal) (bool, error) {
	res := r.DB(ctx).Model(&models.StockLot{}).
		Where("product_id = ?", productID).
		Update("unit_discount", discount)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) SetActive(ctx context.Context, lotID uuid.UUID, active bool) error {
	return r.DB(ctx).Model(&models.StockLot{}).
		Where("id = ?", lotID).
		Update("active", active).Error
}

// LastSupply returns the highest-sequence lineage entry or nil.
func (r *Repository) LastSupply(ctx context.Context, lotID uuid.UUID) (*models.SupplyEntry, error) {
	var entry models.SupplyEntry
	err := r.DB(ctx).
		Where("stock_lot_id = ?", lotID).
		Order("sequence DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Repository) InsertSupply(ctx context.Context, entry *models.SupplyEntry) error {
	return r.DB(ctx).Create(entry).Error
}

// Lineage lists the lot's supply entries in sequence order.
func (r *Repository) Lineage(ctx context.Context, lotID uuid.UUID) ([]models.SupplyEntry, error) {
	var entries []models.SupplyEntry
	err := r.DB(ctx).
		Where("stock_lot_id = ?", lotID).
		Order("sequence ASC").
		Find(&entries).Error
	return entries, err
}

// CountActiveReferences counts line items of active baskets pointing at the lot.
func (r *Repository) CountActiveReferences(ctx context.Context, lotID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Table("basket_line_items AS li").
		Joins("JOIN baskets b ON b.id = li.basket_id").
		Where("li.stock_lot_id = ? AND b.active = ?", lotID, true).
		Count(&count).Error
	return count, err
}
