package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/internal/payments"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// Repository defines persistence operations for orders and the basket rows
// their lifecycle reverses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCode(ctx context.Context, code string) (*models.Order, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	UpdateGuarded(ctx context.Context, id uuid.UUID, status enums.OrderStatus, updates map[string]any) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	FindBasket(ctx context.Context, orderID uuid.UUID) (*models.Basket, error)
	ListLineItems(ctx context.Context, basketID uuid.UUID) ([]models.BasketLineItem, error)
	DeactivateBasket(ctx context.Context, basketID uuid.UUID) error
}

// StockReleaser returns reserved units to the stock ledger.
type StockReleaser interface {
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// IncomeReconciler keeps existing income records in step with settlement.
type IncomeReconciler interface {
	ApplyOrder(ctx context.Context, tx *gorm.DB, sale income.OrderSale) (bool, error)
	ReverseOrder(ctx context.Context, tx *gorm.DB, sale income.OrderSale) (bool, error)
}

// PaymentRecorder stores and deactivates payment records.
type PaymentRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input payments.RecordPaymentInput) (*models.PaymentRecord, error)
	DeactivateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error)
}

// Directory resolves the customers and delivery zones orders refer to.
type Directory interface {
	Customer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error)
	DeliveryZone(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.DeliveryZone, error)
}
