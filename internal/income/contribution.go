package income

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// OrderSale is a settled order with its basket and frozen line items.
type OrderSale struct {
	Order  models.Order
	Basket models.Basket
	Items  []models.BasketLineItem
}

// Delta is a signed change to the figures of one income record.
type Delta struct {
	Supply models.SaleTotals
	Web    models.SaleTotals
	Direct models.SaleTotals
	Income decimal.Decimal
}

func zeroTotals() models.SaleTotals {
	return models.SaleTotals{Payments: decimal.Zero}
}

func zeroDelta() Delta {
	return Delta{Supply: zeroTotals(), Web: zeroTotals(), Direct: zeroTotals(), Income: decimal.Zero}
}

// Negate flips the sign of every figure.
func (d Delta) Negate() Delta {
	neg := func(t models.SaleTotals) models.SaleTotals {
		return models.SaleTotals{Items: -t.Items, Payments: t.Payments.Neg()}
	}
	return Delta{Supply: neg(d.Supply), Web: neg(d.Web), Direct: neg(d.Direct), Income: d.Income.Neg()}
}

// Add sums two deltas.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		Supply: d.Supply.Add(other.Supply),
		Web:    d.Web.Add(other.Web),
		Direct: d.Direct.Add(other.Direct),
		Income: d.Income.Add(other.Income),
	}
}

// SupplyDelta is the contribution of one lineage entry.
func SupplyDelta(entry models.SupplyEntry) Delta {
	d := zeroDelta()
	d.Supply = models.SaleTotals{
		Items:    int64(entry.Quantity),
		Payments: entry.UnitCost.Mul(decimal.NewFromInt(int64(entry.Quantity))),
	}
	return d
}

// SaleDelta is the contribution of one sold basket. Income only reads the
// frozen line items so reversal subtracts exactly what was attributed.
func SaleDelta(channel enums.OrderChannel, totalQuantity int, totalPrice decimal.Decimal, items []models.BasketLineItem) Delta {
	d := zeroDelta()
	sale := models.SaleTotals{Items: int64(totalQuantity), Payments: totalPrice}
	if channel == enums.OrderChannelDirect {
		d.Direct = sale
	} else {
		d.Web = sale
	}
	for _, item := range items {
		d.Income = d.Income.Add(item.Income())
	}
	return d
}

// Contribution is the delta a settled order adds to its day.
func (s OrderSale) Contribution() Delta {
	return SaleDelta(s.Order.Channel, s.Basket.TotalQuantity, s.Basket.TotalPrice, s.Items)
}
