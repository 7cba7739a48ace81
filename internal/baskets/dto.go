package baskets

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/backoffice-backend/internal/orders"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

// LineItemInput requests quantity units of one product.
type LineItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// AttachInput binds a new basket to an INITIATED order.
type AttachInput struct {
	OrderID uuid.UUID
	Items   []LineItemInput
	Actor   *outbox.ActorRef
}

// PushInput appends one line item to an active basket.
type PushInput struct {
	BasketID uuid.UUID
	Item     LineItemInput
	Actor    *outbox.ActorRef
}

// PopInput removes the line item of one product from an active basket.
type PopInput struct {
	BasketID  uuid.UUID
	ProductID uuid.UUID
	Actor     *outbox.ActorRef
}

// Totals are the basket sums recomputed after every change.
type Totals struct {
	TotalPrice    decimal.Decimal
	TotalQuantity int
	TotalDiscount decimal.Decimal
}

func (t Totals) forOrder() orders.BasketTotals {
	return orders.BasketTotals{TotalPrice: t.TotalPrice, TotalQuantity: t.TotalQuantity}
}

func totalsOf(items []models.BasketLineItem) Totals {
	totals := Totals{TotalPrice: decimal.Zero, TotalDiscount: decimal.Zero}
	for _, item := range items {
		totals.TotalPrice = totals.TotalPrice.Add(item.Price)
		totals.TotalQuantity += item.Quantity
		totals.TotalDiscount = totals.TotalDiscount.Add(item.Discount)
	}
	return totals
}

// Detail is a basket with its line items.
type Detail struct {
	Basket models.Basket           `json:"basket"`
	Items  []models.BasketLineItem `json:"items"`
}
