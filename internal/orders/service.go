package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/income"
	"github.com/angelmondragon/backoffice-backend/internal/payments"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

const (
	DefaultExpirationWindow = 24 * time.Hour
	DefaultCodeAttempts     = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the order lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	GetByCode(ctx context.Context, code string) (*OrderDetail, error)
	ChangeStatus(ctx context.Context, input ChangeStatusInput) (*models.Order, error)
	ChangeDeliveryLocation(ctx context.Context, orderID, zoneID uuid.UUID, actor *outbox.ActorRef) (*models.Order, error)
	Expire(ctx context.Context, orderID uuid.UUID) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	Archive(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*ReversalOutcome, error)
	Delete(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error

	// GetTx and ApplyBasketTx let the basket drive its order inside the
	// basket's own transaction.
	GetTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	ApplyBasketTx(ctx context.Context, tx *gorm.DB, order *models.Order, totals BasketTotals, to enums.OrderStatus, actor *outbox.ActorRef) error
}

type ServiceParams struct {
	Repository       Repository
	DB               txRunner
	Outbox           outboxPublisher
	Stock            StockReleaser
	Income           IncomeReconciler
	Payments         PaymentRecorder
	Directory        Directory
	Logger           *logger.Logger
	Clock            func() time.Time
	ExpirationWindow time.Duration
	CodeAttempts     int
	CodeGenerator    func() (string, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	stock      StockReleaser
	income     IncomeReconciler
	payments   PaymentRecorder
	directory  Directory
	logg       *logger.Logger
	now        func() time.Time
	window     time.Duration
	attempts   int
	generateFn func() (string, error)
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	if params.Income == nil {
		return nil, fmt.Errorf("income reconciler required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("directory required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		repo:       params.Repository,
		tx:         params.DB,
		outbox:     params.Outbox,
		stock:      params.Stock,
		income:     params.Income,
		payments:   params.Payments,
		directory:  params.Directory,
		logg:       params.Logger,
		now:        params.Clock,
		window:     params.ExpirationWindow,
		attempts:   params.CodeAttempts,
		generateFn: params.CodeGenerator,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.window <= 0 {
		svc.window = DefaultExpirationWindow
	}
	if svc.attempts <= 0 {
		svc.attempts = DefaultCodeAttempts
	}
	if svc.generateFn == nil {
		svc.generateFn = newCode
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.DeliveryZoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery zone id is required")
	}
	if input.Channel == "" {
		input.Channel = enums.OrderChannelWeb
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order channel %q", input.Channel)
	}

	var order *models.Order
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		order, lastErr = s.tryCreate(ctx, input)
		if lastErr == nil {
			break
		}
		if !db.IsUniqueViolation(lastErr, "ux_orders_code") && !pkgerrors.IsCode(lastErr, pkgerrors.CodeConflict) {
			return nil, lastErr
		}
		order = nil
	}
	if order == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "could not allocate a unique order code")
	}

	logCtx := s.logg.WithOrder(ctx, order.ID.String(), order.Code)
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) tryCreate(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	code, err := s.generateFn()
	if err != nil {
		return nil, pkgerrors.Internal(err, "generate order code")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		customer, err := s.directory.Customer(ctx, tx, input.CustomerID)
		if err != nil {
			return err
		}
		if !customer.Active {
			return pkgerrors.New(pkgerrors.CodeValidation, "customer is not active")
		}
		zone, err := s.directory.DeliveryZone(ctx, tx, input.DeliveryZoneID)
		if err != nil {
			return err
		}
		if !zone.Active {
			return pkgerrors.New(pkgerrors.CodeExpired, "delivery zone is no longer served")
		}

		repo := s.repo.WithTx(tx)
		taken, err := repo.CodeExists(ctx, code)
		if err != nil {
			return pkgerrors.Internal(err, "check order code")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "order code collision")
		}

		now := s.now().UTC()
		order = &models.Order{
			Code:           code,
			CustomerID:     customer.ID,
			DeliveryZoneID: zone.ID,
			Channel:        input.Channel,
			Status:         enums.OrderStatusInitiated,
			TotalPrice:     decimal.Zero,
			TotalQuantity:  0,
			ExpirationAt:   now.Add(s.window),
			Bucket:         types.BucketFor(now),
			Active:         true,
		}
		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "ux_orders_code") {
				return err
			}
			return pkgerrors.Internal(err, "create order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:        order.ID,
				Code:           order.Code,
				CustomerID:     order.CustomerID,
				DeliveryZoneID: order.DeliveryZoneID,
				Channel:        order.Channel,
				ExpirationAt:   order.ExpirationAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load order")
	}
	if order == nil {
		return nil, orderNotFound(orderID.String())
	}
	return s.detail(ctx, order)
}

func (s *service) GetByCode(ctx context.Context, code string) (*OrderDetail, error) {
	order, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load order")
	}
	if order == nil {
		return nil, orderNotFound(code)
	}
	return s.detail(ctx, order)
}

func (s *service) detail(ctx context.Context, order *models.Order) (*OrderDetail, error) {
	detail := &OrderDetail{Order: *order, Items: []models.BasketLineItem{}}
	basket, err := s.repo.FindBasket(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load basket")
	}
	if basket != nil {
		detail.Basket = basket
		items, err := s.repo.ListLineItems(ctx, basket.ID)
		if err != nil {
			return nil, pkgerrors.Internal(err, "load line items")
		}
		detail.Items = items
	}
	records, err := s.payments.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	detail.Payments = records
	return detail, nil
}

// GetTx locks the order row for the rest of tx, so lifecycle reversals and
// basket edits of one order run one at a time.
func (s *service) GetTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).LockByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load order")
	}
	if order == nil {
		return nil, orderNotFound(orderID.String())
	}
	return order, nil
}

// ChangeStatus applies one externally requested transition. Entering PAID
// records the payment and attributes the order to an existing income record.
func (s *service) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", input.Status)
	}
	if input.Status == enums.OrderStatusArchived {
		if _, err := s.Archive(ctx, input.OrderID, input.Actor); err != nil {
			return nil, err
		}
		order, err := s.repo.FindByID(ctx, input.OrderID)
		if err != nil || order == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload archived order")
		}
		return order, nil
	}

	var order *models.Order
	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.GetTx(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !CanRequest(from, input.Status) {
			return invalidTransition(from, input.Status)
		}

		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionStatus(ctx, order.ID, from, input.Status, nil)
		if err != nil {
			return pkgerrors.Internal(err, "update order status")
		}
		if !ok {
			return invalidTransition(from, input.Status)
		}
		order.Status = input.Status

		if input.Status == enums.OrderStatusPaid {
			if err := s.settle(ctx, tx, order, input.Payment); err != nil {
				return err
			}
		}
		return s.emitStateChanged(ctx, tx, order, from, input.Actor)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrder(ctx, order.ID.String(), order.Code), map[string]any{
		"from": from.String(),
		"to":   order.Status.String(),
	})
	s.logg.Info(logCtx, "order status changed")
	return order, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, order *models.Order, payment *PaymentInput) error {
	input := payments.RecordPaymentInput{OrderID: order.ID, Amount: order.TotalPrice}
	if payment != nil {
		input.Method = payment.Method
		input.Reference = payment.Reference
	}
	if _, err := s.payments.Record(ctx, tx, input); err != nil {
		return err
	}
	sale, ok, err := s.gatherSale(ctx, tx, order)
	if err != nil || !ok {
		return err
	}
	if _, err := s.income.ApplyOrder(ctx, tx, sale); err != nil {
		return err
	}
	return nil
}

// gatherSale loads the order's active basket and its frozen line items.
func (s *service) gatherSale(ctx context.Context, tx *gorm.DB, order *models.Order) (income.OrderSale, bool, error) {
	repo := s.repo.WithTx(tx)
	basket, err := repo.FindBasket(ctx, order.ID)
	if err != nil {
		return income.OrderSale{}, false, pkgerrors.Internal(err, "load basket")
	}
	if basket == nil || !basket.Active {
		return income.OrderSale{}, false, nil
	}
	items, err := repo.ListLineItems(ctx, basket.ID)
	if err != nil {
		return income.OrderSale{}, false, pkgerrors.Internal(err, "load line items")
	}
	return income.OrderSale{Order: *order, Basket: *basket, Items: items}, true, nil
}

func (s *service) ChangeDeliveryLocation(ctx context.Context, orderID, zoneID uuid.UUID, actor *outbox.ActorRef) (*models.Order, error) {
	if orderID == uuid.Nil || zoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and delivery zone id are required")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.GetTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if !order.Active || order.Status == enums.OrderStatusArchived {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s is no longer active", order.Code)
		}
		if order.IsExpiredAt(now) {
			return pkgerrors.Newf(pkgerrors.CodeExpired, "order %s has expired", order.Code)
		}
		zone, err := s.directory.DeliveryZone(ctx, tx, zoneID)
		if err != nil {
			return err
		}
		if !zone.Active {
			return pkgerrors.New(pkgerrors.CodeExpired, "delivery zone is no longer served")
		}

		expiration := order.ExpirationAt.Add(s.window)
		ok, err := s.repo.WithTx(tx).UpdateGuarded(ctx, order.ID, order.Status, map[string]any{
			"delivery_zone_id": zone.ID,
			"expiration_at":    expiration,
		})
		if err != nil {
			return pkgerrors.Internal(err, "update delivery zone")
		}
		if !ok {
			return invalidTransition(order.Status, order.Status)
		}
		order.DeliveryZoneID = zone.ID
		order.ExpirationAt = expiration
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrder(ctx, order.ID.String(), order.Code), "order delivery zone changed")
	return order, nil
}

// ApplyBasketTx mirrors basket totals onto the order and, when to differs
// from the current status, moves it along the lifecycle graph.
func (s *service) ApplyBasketTx(ctx context.Context, tx *gorm.DB, order *models.Order, totals BasketTotals, to enums.OrderStatus, actor *outbox.ActorRef) error {
	from := order.Status
	if to != from && !CanTransition(from, to) {
		return invalidTransition(from, to)
	}
	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, to, map[string]any{
		"total_price":    totals.TotalPrice,
		"total_quantity": totals.TotalQuantity,
	})
	if err != nil {
		return pkgerrors.Internal(err, "update order totals")
	}
	if !ok {
		return invalidTransition(from, to)
	}
	order.Status = to
	order.TotalPrice = totals.TotalPrice
	order.TotalQuantity = totals.TotalQuantity
	if to == from {
		return nil
	}
	return s.emitStateChanged(ctx, tx, order, from, actor)
}

func (s *service) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	orders, err := s.repo.ListExpirable(ctx, now.UTC(), limit)
	if err != nil {
		return nil, pkgerrors.Internal(err, "list expirable orders")
	}
	return orders, nil
}

func (s *service) emitStateChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    s.now().UTC(),
		Data: payloads.OrderStateChangedEvent{
			OrderID:    order.ID,
			Code:       order.Code,
			From:       from,
			To:         order.Status,
			TotalPrice: order.TotalPrice,
		},
	})
}

func orderNotFound(ref string) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", ref)
}
