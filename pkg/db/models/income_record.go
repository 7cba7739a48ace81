package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleTotals is an (items, payments) pair summed over one source of activity.
type SaleTotals struct {
	Items    int64           `gorm:"column:items;not null" json:"items"`
	Payments decimal.Decimal `gorm:"column:payments;type:numeric(18,4);not null" json:"payments"`
}

// Add returns the component-wise sum.
func (t SaleTotals) Add(other SaleTotals) SaleTotals {
	return SaleTotals{Items: t.Items + other.Items, Payments: t.Payments.Add(other.Payments)}
}

// Equal compares numerically, ignoring decimal exponent differences.
func (t SaleTotals) Equal(other SaleTotals) bool {
	return t.Items == other.Items && t.Payments.Equal(other.Payments)
}

// IncomeRecord is the derived financial summary of one UTC day.
type IncomeRecord struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Day                int             `gorm:"column:day;not null;uniqueIndex:ux_income_records_day_month_year,priority:1" json:"day"`
	Month              int             `gorm:"column:month;not null;uniqueIndex:ux_income_records_day_month_year,priority:2" json:"month"`
	Year               int             `gorm:"column:year;not null;uniqueIndex:ux_income_records_day_month_year,priority:3" json:"year"`
	TotalSupply        SaleTotals      `gorm:"embedded;embeddedPrefix:supply_" json:"totalSupply"`
	WebOrderSale       SaleTotals      `gorm:"embedded;embeddedPrefix:web_" json:"webOrderSale"`
	DirectPurchaseSale SaleTotals      `gorm:"embedded;embeddedPrefix:direct_" json:"directPurchaseSale"`
	TotalIncome        decimal.Decimal `gorm:"column:total_income;type:numeric(18,4);not null" json:"totalIncome"`
	GeneratedAt        time.Time       `gorm:"column:generated_at;not null" json:"generatedAt"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (r *IncomeRecord) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// SameTotals reports whether both records carry identical figures.
func (r IncomeRecord) SameTotals(other IncomeRecord) bool {
	return r.Day == other.Day && r.Month == other.Month && r.Year == other.Year &&
		r.TotalSupply.Equal(other.TotalSupply) &&
		r.WebOrderSale.Equal(other.WebOrderSale) &&
		r.DirectPurchaseSale.Equal(other.DirectPurchaseSale) &&
		r.TotalIncome.Equal(other.TotalIncome)
}
