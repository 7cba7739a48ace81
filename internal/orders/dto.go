package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

// CreateOrderInput carries the references a new order is bound to.
type CreateOrderInput struct {
	CustomerID     uuid.UUID
	DeliveryZoneID uuid.UUID
	Channel        enums.OrderChannel
	Actor          *outbox.ActorRef
}

// PaymentInput describes the money collected when an order enters PAID.
type PaymentInput struct {
	Method    enums.PaymentMethod
	Reference *string
}

// ChangeStatusInput requests one lifecycle transition.
type ChangeStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Payment *PaymentInput
	Actor   *outbox.ActorRef
}

// BasketTotals are the basket figures mirrored onto its order.
type BasketTotals struct {
	TotalPrice    decimal.Decimal
	TotalQuantity int
}

// OrderDetail is an order with its basket, line items and payments.
type OrderDetail struct {
	Order    models.Order            `json:"order"`
	Basket   *models.Basket          `json:"basket,omitempty"`
	Items    []models.BasketLineItem `json:"items"`
	Payments []models.PaymentRecord  `json:"payments"`
}

// ReversalOutcome summarizes what archive or delete undid.
type ReversalOutcome struct {
	PriorStatus    enums.OrderStatus `json:"priorStatus"`
	ReleasedUnits  int               `json:"releasedUnits"`
	IncomeReversed bool              `json:"incomeReversed"`
	Payments       int64             `json:"paymentsDeactivated"`
}
