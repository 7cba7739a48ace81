// Package dbtest opens throwaway sqlite databases carrying the full schema,
// plus fixture helpers shared by repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// Open returns a client over a private in-memory sqlite database migrated
// from the models. The single connection serializes concurrent writers.
func Open(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", sanitize(t.Name()), uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db.FromGorm(conn, 5*time.Second)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// MustCreateCustomer inserts a customer with the given active flag.
func MustCreateCustomer(t *testing.T, conn *gorm.DB, active bool) *models.Customer {
	t.Helper()
	customer := &models.Customer{Name: "Test Customer", Active: active}
	if err := conn.Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

// MustCreateZone inserts a delivery zone with the given active flag.
func MustCreateZone(t *testing.T, conn *gorm.DB, active bool) *models.DeliveryZone {
	t.Helper()
	zone := &models.DeliveryZone{Name: "Test Zone", Active: active}
	if err := conn.Create(zone).Error; err != nil {
		t.Fatalf("create zone: %v", err)
	}
	return zone
}

// MustCreateLot inserts an active lot holding quantity units at unitPrice,
// without supply lineage.
func MustCreateLot(t *testing.T, conn *gorm.DB, quantity int, unitPrice string) *models.StockLot {
	t.Helper()
	lot := &models.StockLot{
		ProductID:    uuid.New(),
		UnitPrice:    decimal.RequireFromString(unitPrice),
		UnitDiscount: decimal.Zero,
		Quantity:     quantity,
		Bucket:       types.BucketFor(time.Now()),
		Complete:     true,
		Active:       true,
	}
	if err := conn.Create(lot).Error; err != nil {
		t.Fatalf("create stock lot: %v", err)
	}
	return lot
}

// Quantity reads the current quantity of the product's lot.
func Quantity(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var lot models.StockLot
	if err := conn.Where("product_id = ?", productID).First(&lot).Error; err != nil {
		t.Fatalf("load stock lot: %v", err)
	}
	return lot.Quantity
}
