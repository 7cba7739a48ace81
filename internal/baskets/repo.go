package baskets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a basket repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, basket *models.Basket) error {
	return r.db.WithContext(ctx).Create(basket).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Basket, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Basket, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Basket, error) {
	var basket models.Basket
	err := r.db.WithContext(ctx).Where(query, arg).First(&basket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

func (r *repository) UpdateTotals(ctx context.Context, id uuid.UUID, totals Totals) error {
	return r.db.WithContext(ctx).Model(&models.Basket{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_price":    totals.TotalPrice,
			"total_quantity": totals.TotalQuantity,
			"total_discount": totals.TotalDiscount,
		}).Error
}

// Deactivate flips an active basket off and reports whether it did.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Basket{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.BasketLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ListItems(ctx context.Context, basketID uuid.UUID) ([]models.BasketLineItem, error) {
	var items []models.BasketLineItem
	err := r.db.WithContext(ctx).
		Where("basket_id = ?", basketID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) FindItem(ctx context.Context, basketID, productID uuid.UUID) (*models.BasketLineItem, error) {
	var item models.BasketLineItem
	err := r.db.WithContext(ctx).
		Where("basket_id = ? AND product_id = ?", basketID, productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem reports how many rows it removed; zero means another writer
// already popped the item.
func (r *repository) DeleteItem(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.BasketLineItem{}, "id = ?", id)
	return res.RowsAffected, res.Error
}
