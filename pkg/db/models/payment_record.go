package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// PaymentRecord captures money collected for an order. Amounts are immutable;
// archive and delete only flip Active.
type PaymentRecord struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index" json:"orderId"`
	Amount    decimal.Decimal     `gorm:"column:amount;type:numeric(18,4);not null" json:"amount"`
	Method    enums.PaymentMethod `gorm:"column:method;type:varchar(16);not null" json:"method"`
	Reference *string             `gorm:"column:reference" json:"reference,omitempty"`
	Active    bool                `gorm:"column:active;not null" json:"active"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (p *PaymentRecord) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
