package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// StockLot is the sellable quantity record of a single product.
type StockLot struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_lots_product_id" json:"productId"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null" json:"unitPrice"`
	UnitDiscount decimal.Decimal `gorm:"column:unit_discount;type:numeric(18,4);not null" json:"unitDiscount"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	types.Bucket `gorm:"embedded"`
	Complete     bool      `gorm:"column:complete;not null" json:"complete"`
	Active       bool      `gorm:"column:active;not null" json:"active"`
	Showcase     bool      `gorm:"column:showcase;not null" json:"showcase"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (s *StockLot) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SupplyEntry is one immutable replenishment contributing to a StockLot.
// Rows are append-only; Sequence orders the lineage of a lot.
type SupplyEntry struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StockLotID        uuid.UUID       `gorm:"column:stock_lot_id;type:uuid;not null;uniqueIndex:ux_stock_lot_supplies_sequence,priority:1" json:"stockLotId"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index" json:"productId"`
	SuppliedProductID uuid.UUID       `gorm:"column:supplied_product_id;type:uuid;not null" json:"suppliedProductId"`
	Quantity          int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitCost          decimal.Decimal `gorm:"column:unit_cost;type:numeric(18,4);not null" json:"unitCost"`
	Sequence          int             `gorm:"column:sequence;not null;uniqueIndex:ux_stock_lot_supplies_sequence,priority:2" json:"sequence"`
	AddedAt           time.Time       `gorm:"column:added_at;not null;index" json:"addedAt"`
}

func (SupplyEntry) TableName() string {
	return "stock_lot_supplies"
}

func (s *SupplyEntry) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
