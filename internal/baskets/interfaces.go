package baskets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/orders"
	"github.com/angelmondragon/backoffice-backend/internal/stock"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

// Repository defines persistence operations for baskets and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, basket *models.Basket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Basket, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Basket, error)
	UpdateTotals(ctx context.Context, id uuid.UUID, totals Totals) error
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	CreateItems(ctx context.Context, items []models.BasketLineItem) error
	ListItems(ctx context.Context, basketID uuid.UUID) ([]models.BasketLineItem, error)
	FindItem(ctx context.Context, basketID, productID uuid.UUID) (*models.BasketLineItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) (int64, error)
}

// StockReserver takes and returns units inside the caller's transaction.
type StockReserver interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (stock.Reservation, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// OrderDriver is the slice of the order lifecycle a basket moves.
type OrderDriver interface {
	GetTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	ApplyBasketTx(ctx context.Context, tx *gorm.DB, order *models.Order, totals orders.BasketTotals, to enums.OrderStatus, actor *outbox.ActorRef) error
}
