package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// OrderCreatedEvent announces a new order without stock attached.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID          `json:"order_id"`
	Code           string             `json:"code"`
	CustomerID     uuid.UUID          `json:"customer_id"`
	DeliveryZoneID uuid.UUID          `json:"delivery_zone_id"`
	Channel        enums.OrderChannel `json:"channel"`
	ExpirationAt   time.Time          `json:"expiration_at"`
}

// OrderStateChangedEvent is emitted for every accepted lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	Code       string            `json:"code"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

// OrderExpiredEvent reports an order released by the expiration sweep.
type OrderExpiredEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	Code          string            `json:"code"`
	PriorStatus   enums.OrderStatus `json:"prior_status"`
	ReleasedUnits int               `json:"released_units"`
	ExpiredAt     time.Time         `json:"expired_at"`
}

// OrderArchivedEvent reports a reversed order.
type OrderArchivedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	Code           string            `json:"code"`
	PriorStatus    enums.OrderStatus `json:"prior_status"`
	ReleasedUnits  int               `json:"released_units"`
	IncomeReversed bool              `json:"income_reversed"`
	ArchivedAt     time.Time         `json:"archived_at"`
}

// OrderDeletedEvent reports a soft-deleted order.
type OrderDeletedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	Code      string    `json:"code"`
	DeletedAt time.Time `json:"deleted_at"`
}

// BasketItem mirrors a frozen basket line item.
type BasketItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Price     decimal.Decimal `json:"price"`
}

// BasketAttachedEvent is emitted once stock for every item is reserved.
type BasketAttachedEvent struct {
	BasketID      uuid.UUID       `json:"basket_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalQuantity int             `json:"total_quantity"`
	Items         []BasketItem    `json:"items"`
}

// Basket change kinds.
const (
	BasketItemPushed = "pushed"
	BasketItemPopped = "popped"
)

// BasketChangedEvent is emitted when a line item is pushed or popped.
type BasketChangedEvent struct {
	BasketID      uuid.UUID       `json:"basket_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Change        string          `json:"change"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalQuantity int             `json:"total_quantity"`
}

// StockReplenishedEvent carries the lineage entry appended by a supply.
type StockReplenishedEvent struct {
	StockLotID        uuid.UUID       `json:"stock_lot_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	SuppliedProductID uuid.UUID       `json:"supplied_product_id"`
	Quantity          int             `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Sequence          int             `json:"sequence"`
	QuantityAfter     int             `json:"quantity_after"`
}

// StockLotDeactivatedEvent reports a lot withdrawn from sale.
type StockLotDeactivatedEvent struct {
	StockLotID uuid.UUID `json:"stock_lot_id"`
	ProductID  uuid.UUID `json:"product_id"`
}
