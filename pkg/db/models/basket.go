package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Basket holds the reserved line items of exactly one order.
type Basket struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_baskets_order_id" json:"orderId"`
	TotalPrice    decimal.Decimal `gorm:"column:total_price;type:numeric(18,4);not null" json:"totalPrice"`
	TotalQuantity int             `gorm:"column:total_quantity;not null" json:"totalQuantity"`
	TotalDiscount decimal.Decimal `gorm:"column:total_discount;type:numeric(18,4);not null" json:"totalDiscount"`
	Active        bool            `gorm:"column:active;not null" json:"active"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (b *Basket) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// BasketLineItem is one reservation inside a basket. Price, unit cost and
// discount are frozen when the stock is reserved and never recomputed.
type BasketLineItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BasketID   uuid.UUID       `gorm:"column:basket_id;type:uuid;not null;uniqueIndex:ux_basket_line_items_product,priority:1" json:"basketId"`
	StockLotID uuid.UUID       `gorm:"column:stock_lot_id;type:uuid;not null;index" json:"stockLotId"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_basket_line_items_product,priority:2" json:"productId"`
	Quantity   int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(18,4);not null" json:"unitPrice"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(18,4);not null" json:"price"`
	UnitCost   decimal.Decimal `gorm:"column:unit_cost;type:numeric(18,4);not null" json:"unitCost"`
	Discount   decimal.Decimal `gorm:"column:discount;type:numeric(18,4);not null" json:"discount"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (i *BasketLineItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Income is the margin this item contributes: price - unitCost*quantity - discount.
func (i BasketLineItem) Income() decimal.Decimal {
	return i.Price.Sub(i.UnitCost.Mul(decimal.NewFromInt(int64(i.Quantity)))).Sub(i.Discount)
}
