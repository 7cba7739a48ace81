package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// Order is the lifecycle aggregate driven by the order state machine.
type Order struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code           string             `gorm:"column:code;type:varchar(16);not null;uniqueIndex:ux_orders_code" json:"code"`
	CustomerID     uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	DeliveryZoneID uuid.UUID          `gorm:"column:delivery_zone_id;type:uuid;not null" json:"deliveryZoneId"`
	Channel        enums.OrderChannel `gorm:"column:channel;type:varchar(16);not null" json:"channel"`
	Status         enums.OrderStatus  `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	TotalPrice     decimal.Decimal    `gorm:"column:total_price;type:numeric(18,4);not null" json:"totalPrice"`
	TotalQuantity  int                `gorm:"column:total_quantity;not null" json:"totalQuantity"`
	ExpirationAt   time.Time          `gorm:"column:expiration_at;not null;index" json:"expirationAt"`
	types.Bucket   `gorm:"embedded"`
	Active         bool           `gorm:"column:active;not null" json:"active"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// IsExpiredAt reports whether the order can no longer be modified at now.
func (o Order) IsExpiredAt(now time.Time) bool {
	return o.Status == enums.OrderStatusExpired || !o.ExpirationAt.After(now)
}
