package orders

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/directory"
	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/internal/payments"
	"github.com/angelmondragon/backoffice-backend/internal/stock"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/dbtest"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	client *db.Client
	conn   *gorm.DB
	clock  *clock
	svc    Service
	stock  *stock.Service
	income *income.Service
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	clk := &clock{now: time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)}
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	incomeSvc, err := income.NewService(income.ServiceParams{
		Repository: income.NewRepository(conn),
		DB:         client,
		Logger:     logg,
		Clock:      clk.Now,
	})
	require.NoError(t, err)
	stockSvc, err := stock.NewService(stock.ServiceParams{
		Repository: stock.NewRepository(conn),
		DB:         client,
		Outbox:     publisher,
		Income:     incomeSvc,
		Logger:     logg,
		Clock:      clk.Now,
	})
	require.NoError(t, err)
	paymentSvc, err := payments.NewService(payments.NewRepository(conn))
	require.NoError(t, err)

	params := ServiceParams{
		Repository: NewRepository(conn),
		DB:         client,
		Outbox:     publisher,
		Stock:      stockSvc,
		Income:     incomeSvc,
		Payments:   paymentSvc,
		Directory:  directory.New(conn),
		Logger:     logg,
		Clock:      clk.Now,
	}
	if len(codes) > 0 {
		var mu sync.Mutex
		queue := append([]string(nil), codes...)
		params.CodeGenerator = func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(queue) == 0 {
				return "", errors.New("code queue exhausted")
			}
			next := queue[0]
			queue = queue[1:]
			return next, nil
		}
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return &harness{client: client, conn: conn, clock: clk, svc: svc, stock: stockSvc, income: incomeSvc}
}

func (h *harness) createOrder(t *testing.T, channel enums.OrderChannel) *models.Order {
	t.Helper()
	customer := dbtest.MustCreateCustomer(t, h.conn, true)
	zone := dbtest.MustCreateZone(t, h.conn, true)
	order, err := h.svc.Create(context.Background(), CreateOrderInput{
		CustomerID:     customer.ID,
		DeliveryZoneID: zone.ID,
		Channel:        channel,
	})
	require.NoError(t, err)
	return order
}

// attach reserves qty of the lot into a fresh basket and moves the order to PAYING.
func (h *harness) attach(t *testing.T, order *models.Order, lot *models.StockLot, qty int) *models.Basket {
	t.Helper()
	ctx := context.Background()
	var basket *models.Basket
	err := h.client.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := h.stock.ReserveTx(ctx, tx, lot.ProductID, qty)
		if err != nil {
			return err
		}
		price := res.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		basket = &models.Basket{OrderID: order.ID, TotalPrice: price, TotalQuantity: qty, TotalDiscount: decimal.Zero, Active: true}
		if err := tx.Create(basket).Error; err != nil {
			return err
		}
		item := &models.BasketLineItem{
			BasketID:   basket.ID,
			StockLotID: res.StockLotID,
			ProductID:  res.ProductID,
			Quantity:   qty,
			UnitPrice:  res.UnitPrice,
			Price:      price,
			UnitCost:   res.UnitCost,
			Discount:   res.UnitDiscount.Mul(decimal.NewFromInt(int64(qty))),
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		current, err := h.svc.GetTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		return h.svc.ApplyBasketTx(ctx, tx, current, BasketTotals{TotalPrice: price, TotalQuantity: qty}, enums.OrderStatusPaying, nil)
	})
	require.NoError(t, err)
	return basket
}

func (h *harness) status(t *testing.T, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.Unscoped().First(&order, "id = ?", id).Error)
	return order.Status
}

func (h *harness) pay(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := h.svc.ChangeStatus(context.Background(), ChangeStatusInput{OrderID: id, Status: enums.OrderStatusPaid})
	require.NoError(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t, "")

	assert.Equal(t, enums.OrderStatusInitiated, order.Status)
	assert.Equal(t, enums.OrderChannelWeb, order.Channel)
	assert.Regexp(t, `^ORD-[0-9A-HJKMNP-TV-Z]{8}$`, order.Code)
	assert.True(t, order.TotalPrice.IsZero())
	assert.True(t, order.ExpirationAt.Equal(h.clock.Now().Add(24*time.Hour)))
	assert.Equal(t, 2, order.Day)
	assert.Equal(t, 4, order.Month)
	assert.True(t, order.Active)

	var events int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCreateOrderValidatesDirectory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	activeCustomer := dbtest.MustCreateCustomer(t, h.conn, true)
	inactiveCustomer := dbtest.MustCreateCustomer(t, h.conn, false)
	activeZone := dbtest.MustCreateZone(t, h.conn, true)
	closedZone := dbtest.MustCreateZone(t, h.conn, false)

	_, err := h.svc.Create(ctx, CreateOrderInput{CustomerID: uuid.New(), DeliveryZoneID: activeZone.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.Create(ctx, CreateOrderInput{CustomerID: inactiveCustomer.ID, DeliveryZoneID: activeZone.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.Create(ctx, CreateOrderInput{CustomerID: activeCustomer.ID, DeliveryZoneID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.Create(ctx, CreateOrderInput{CustomerID: activeCustomer.ID, DeliveryZoneID: closedZone.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExpired))
	_, err = h.svc.Create(ctx, CreateOrderInput{CustomerID: activeCustomer.ID, DeliveryZoneID: activeZone.ID, Channel: "fax"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderRetriesCodeCollisions(t *testing.T) {
	h := newHarness(t, "ORD-AAAAAAAA", "ORD-AAAAAAAA", "ORD-BBBBBBBB")
	first := h.createOrder(t, enums.OrderChannelWeb)
	second := h.createOrder(t, enums.OrderChannelDirect)

	assert.Equal(t, "ORD-AAAAAAAA", first.Code)
	assert.Equal(t, "ORD-BBBBBBBB", second.Code)
}

func TestChangeStatusFollowsRequestableEdges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "100")
	order := h.createOrder(t, enums.OrderChannelWeb)

	_, err := h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: enums.OrderStatusPaid})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "initiated cannot be paid")

	h.attach(t, order, lot, 4)
	assert.Equal(t, enums.OrderStatusPaying, h.status(t, order.ID))

	_, err = h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: enums.OrderStatusShipping})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: enums.OrderStatusExpired})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	ref := "card-1234"
	paid, err := h.svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusPaid,
		Payment: &PaymentInput{Method: enums.PaymentMethodCard, Reference: &ref},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)

	for _, next := range []enums.OrderStatus{enums.OrderStatusShipping, enums.OrderStatusDelivered} {
		_, err := h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: next})
		require.NoError(t, err)
	}
	assert.Equal(t, enums.OrderStatusDelivered, h.status(t, order.ID))

	detail, err := h.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Payments, 1)
	assert.True(t, detail.Payments[0].Amount.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, enums.PaymentMethodCard, detail.Payments[0].Method)
	require.Len(t, detail.Items, 1)
	assert.True(t, detail.Order.TotalPrice.Equal(decimal.NewFromInt(400)))

	byCode, err := h.svc.GetByCode(ctx, order.Code)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byCode.Order.ID)

	var changes int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderStateChanged).Count(&changes).Error)
	assert.Equal(t, int64(4), changes, "paying, paid, shipping, delivered")
}

func TestPayingAttributesIncomeOnlyToExistingRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "100")
	order := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, order, lot, 2)

	_, err := h.income.Upsert(ctx, 2, 4, 2026)
	require.NoError(t, err)
	h.pay(t, order.ID)

	record, err := h.income.Get(ctx, 2, 4, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.WebOrderSale.Items)
	assert.True(t, record.WebOrderSale.Payments.Equal(decimal.NewFromInt(200)))
	assert.True(t, record.TotalIncome.Equal(decimal.NewFromInt(200)), "no supply history means zero cost")

	regenerated, err := h.income.Generate(ctx, 2, 4, 2026)
	require.NoError(t, err)
	assert.True(t, regenerated.SameTotals(*record))
}

func TestChangeDeliveryLocation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, enums.OrderChannelWeb)
	zone := dbtest.MustCreateZone(t, h.conn, true)
	closed := dbtest.MustCreateZone(t, h.conn, false)

	updated, err := h.svc.ChangeDeliveryLocation(ctx, order.ID, zone.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, zone.ID, updated.DeliveryZoneID)
	assert.True(t, updated.ExpirationAt.Equal(order.ExpirationAt.Add(24*time.Hour)))

	_, err = h.svc.ChangeDeliveryLocation(ctx, order.ID, closed.ID, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExpired))

	h.clock.Advance(49 * time.Hour)
	_, err = h.svc.ChangeDeliveryLocation(ctx, order.ID, zone.ID, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExpired))
}

func TestExpireReleasesReservations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "5")
	order := h.createOrder(t, enums.OrderChannelWeb)
	basket := h.attach(t, order, lot, 6)

	err := h.svc.Expire(ctx, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "not yet expired")

	h.clock.Advance(25 * time.Hour)
	candidates, err := h.svc.ListExpirable(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, order.ID, candidates[0].ID)

	require.NoError(t, h.svc.Expire(ctx, order.ID))
	assert.Equal(t, enums.OrderStatusExpired, h.status(t, order.ID))
	assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID))

	var stored models.Basket
	require.NoError(t, h.conn.First(&stored, "id = ?", basket.ID).Error)
	assert.False(t, stored.Active)

	err = h.svc.Expire(ctx, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "second expire is rejected")
	assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID))

	candidates, err = h.svc.ListExpirable(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, err = h.svc.Archive(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID), "expired reservations are not released twice")
}

// countOrderLocks counts order reads issued with FOR UPDATE. sqlite drops the
// clause when rendering SQL, so the statement clauses are inspected instead.
func countOrderLocks(t *testing.T, conn *gorm.DB) func() int {
	t.Helper()
	var mu sync.Mutex
	locked := 0
	require.NoError(t, conn.Callback().Query().Before("gorm:query").Register("test:order_locks", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; ok && tx.Statement.Table == "orders" {
			mu.Lock()
			locked++
			mu.Unlock()
		}
	}))
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return locked
	}
}

func TestLifecycleLocksTheOrderRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "5")
	expiring := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, expiring, lot, 2)
	archived := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, archived, lot, 3)
	locks := countOrderLocks(t, h.conn)

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.svc.Expire(ctx, expiring.ID))
	assert.Equal(t, 1, locks())

	_, err := h.svc.Archive(ctx, archived.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, locks())

	require.NoError(t, h.svc.Delete(ctx, archived.ID, nil))
	assert.Equal(t, 3, locks())
	assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID))
}

func TestArchivePaidOrderRestoresStockAndIncome(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "100")

	other := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, other, lot, 1)
	h.pay(t, other.ID)
	before, err := h.income.Upsert(ctx, 2, 4, 2026)
	require.NoError(t, err)

	order := h.createOrder(t, enums.OrderChannelDirect)
	h.attach(t, order, lot, 4)
	h.pay(t, order.ID)
	assert.Equal(t, 5, dbtest.Quantity(t, h.conn, lot.ProductID))

	outcome, err := h.svc.Archive(ctx, order.ID, &outbox.ActorRef{EmployeeID: uuid.New(), Role: "manager"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, outcome.PriorStatus)
	assert.Equal(t, 4, outcome.ReleasedUnits)
	assert.True(t, outcome.IncomeReversed)
	assert.Equal(t, int64(1), outcome.Payments)
	assert.Equal(t, 9, dbtest.Quantity(t, h.conn, lot.ProductID))

	after, err := h.income.Get(ctx, 2, 4, 2026)
	require.NoError(t, err)
	assert.True(t, after.SameTotals(*before))

	regenerated, err := h.income.Generate(ctx, 2, 4, 2026)
	require.NoError(t, err)
	assert.True(t, regenerated.SameTotals(*after))

	detail, err := h.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusArchived, detail.Order.Status)
	assert.False(t, detail.Order.Active)
	assert.False(t, detail.Basket.Active)
	require.Len(t, detail.Payments, 1)
	assert.False(t, detail.Payments[0].Active)

	_, err = h.svc.Archive(ctx, order.ID, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 9, dbtest.Quantity(t, h.conn, lot.ProductID))
}

func TestArchiveShippedOrderKeepsStockOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "100")
	order := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, order, lot, 3)
	h.pay(t, order.ID)
	_, err := h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: enums.OrderStatusShipping})
	require.NoError(t, err)

	archived, err := h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: enums.OrderStatusArchived})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusArchived, archived.Status)
	assert.Equal(t, 7, dbtest.Quantity(t, h.conn, lot.ProductID))
}

func TestDeleteOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "10")
	order := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, order, lot, 5)

	require.NoError(t, h.svc.Delete(ctx, order.ID, nil))
	assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID))
	assert.Equal(t, enums.OrderStatusArchived, h.status(t, order.ID))

	_, err := h.svc.Get(ctx, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(h.svc.Delete(ctx, order.ID, nil), pkgerrors.CodeNotFound))

	archivedFirst := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, archivedFirst, lot, 2)
	_, err = h.svc.Archive(ctx, archivedFirst.ID, nil)
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(ctx, archivedFirst.ID, nil), "delete completes on an archived order")
	assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID))
}

// dbtest.Open pins sqlite to one connection, so payment and expiry serialize
// as whole transactions; the status guard decides which one lands.
func TestConcurrentPaymentAndExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lot := dbtest.MustCreateLot(t, h.conn, 10, "10")
	order := h.createOrder(t, enums.OrderChannelWeb)
	h.attach(t, order, lot, 3)
	h.clock.Advance(25 * time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = h.svc.ChangeStatus(ctx, ChangeStatusInput{OrderID: order.ID, Status: enums.OrderStatusPaid})
	}()
	go func() {
		defer wg.Done()
		errs[1] = h.svc.Expire(ctx, order.ID)
	}()
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one transition wins")

	switch h.status(t, order.ID) {
	case enums.OrderStatusPaid:
		assert.Equal(t, 7, dbtest.Quantity(t, h.conn, lot.ProductID))
	case enums.OrderStatusExpired:
		assert.Equal(t, 10, dbtest.Quantity(t, h.conn, lot.ProductID))
	default:
		t.Fatalf("unexpected status %s", h.status(t, order.ID))
	}
}
