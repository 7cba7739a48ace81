package baskets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the basket of an order and every reservation inside it.
type Service interface {
	Attach(ctx context.Context, input AttachInput) (*Detail, error)
	Push(ctx context.Context, input PushInput) (*Detail, error)
	Pop(ctx context.Context, input PopInput) (*Detail, error)
	Delete(ctx context.Context, basketID uuid.UUID) error
	Get(ctx context.Context, basketID uuid.UUID) (*Detail, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*Detail, error)
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Outbox     outboxPublisher
	Stock      StockReserver
	Orders     OrderDriver
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  StockReserver
	orders OrderDriver
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("basket repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order driver required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repository,
		tx:     params.DB,
		outbox: params.Outbox,
		stock:  params.Stock,
		orders: params.Orders,
		logg:   params.Logger,
		now:    clock,
	}, nil
}

// Attach reserves every requested item, persists the basket with frozen
// prices and moves the order from INITIATED to PAYING. Any failure rolls back
// all reservations taken so far.
func (s *service) Attach(ctx context.Context, input AttachInput) (*Detail, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	var detail *Detail
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.orders.GetTx(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusInitiated {
			return notModifiable(order)
		}
		if order.IsExpiredAt(s.now().UTC()) {
			return orderExpired(order)
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByOrderID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Internal(err, "load basket")
		}
		if existing != nil {
			return duplicateBasket(order)
		}

		items := make([]models.BasketLineItem, 0, len(input.Items))
		for _, requested := range input.Items {
			item, err := s.reserve(ctx, tx, requested)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		totals := totalsOf(items)
		basket := &models.Basket{
			OrderID:       order.ID,
			TotalPrice:    totals.TotalPrice,
			TotalQuantity: totals.TotalQuantity,
			TotalDiscount: totals.TotalDiscount,
			Active:        true,
		}
		if err := repo.Create(ctx, basket); err != nil {
			if db.IsUniqueViolation(err, "ux_baskets_order_id") {
				return duplicateBasket(order)
			}
			return pkgerrors.Internal(err, "create basket")
		}
		for i := range items {
			items[i].BasketID = basket.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Internal(err, "create line items")
		}

		if err := s.orders.ApplyBasketTx(ctx, tx, order, totals.forOrder(), enums.OrderStatusPaying, input.Actor); err != nil {
			return err
		}

		detail = &Detail{Basket: *basket, Items: items}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBasketAttached,
			AggregateType: enums.AggregateBasket,
			AggregateID:   basket.ID,
			Actor:         input.Actor,
			OccurredAt:    s.now().UTC(),
			Data: payloads.BasketAttachedEvent{
				BasketID:      basket.ID,
				OrderID:       order.ID,
				TotalPrice:    totals.TotalPrice,
				TotalQuantity: totals.TotalQuantity,
				Items:         eventItems(items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrder(ctx, order.ID.String(), order.Code), map[string]any{
		"basket_id":      detail.Basket.ID.String(),
		"total_quantity": detail.Basket.TotalQuantity,
		"line_items":     len(detail.Items),
	})
	s.logg.Info(logCtx, "basket attached")
	return detail, nil
}

// Push reserves one more product into the basket. An emptied basket brings
// its INITIATED order back to PAYING.
func (s *service) Push(ctx context.Context, input PushInput) (*Detail, error) {
	if input.BasketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket id is required")
	}
	if err := validateItems([]LineItemInput{input.Item}); err != nil {
		return nil, err
	}

	var detail *Detail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		basket, order, err := s.loadModifiable(ctx, tx, input.BasketID)
		if err != nil {
			return err
		}
		if order.IsExpiredAt(s.now().UTC()) {
			return orderExpired(order)
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindItem(ctx, basket.ID, input.Item.ProductID)
		if err != nil {
			return pkgerrors.Internal(err, "load line item")
		}
		if existing != nil {
			return duplicateItem(input.Item.ProductID)
		}

		item, err := s.reserve(ctx, tx, input.Item)
		if err != nil {
			return err
		}
		item.BasketID = basket.ID
		if err := repo.CreateItems(ctx, []models.BasketLineItem{item}); err != nil {
			if db.IsUniqueViolation(err, "ux_basket_line_items_product") {
				return duplicateItem(input.Item.ProductID)
			}
			return pkgerrors.Internal(err, "create line item")
		}

		detail, err = s.recompute(ctx, tx, basket, order, enums.OrderStatusPaying, input.Actor)
		if err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, detail, input.Item.ProductID, payloads.BasketItemPushed, input.Item.Quantity, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	s.logChange(ctx, detail, input.Item.ProductID, "basket item pushed")
	return detail, nil
}

// Pop releases the product's reservation and removes its line item. Popping
// the last item returns the order to INITIATED.
func (s *service) Pop(ctx context.Context, input PopInput) (*Detail, error) {
	if input.BasketID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket id and product id are required")
	}

	var detail *Detail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		basket, order, err := s.loadModifiable(ctx, tx, input.BasketID)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, basket.ID, input.ProductID)
		if err != nil {
			return pkgerrors.Internal(err, "load line item")
		}
		if item == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s is not in basket %s", input.ProductID, basket.ID)
		}
		deleted, err := repo.DeleteItem(ctx, item.ID)
		if err != nil {
			return pkgerrors.Internal(err, "delete line item")
		}
		if deleted != 1 {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s is not in basket %s", input.ProductID, basket.ID)
		}
		if err := s.stock.ReleaseTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}

		detail, err = s.recompute(ctx, tx, basket, order, "", input.Actor)
		if err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, detail, input.ProductID, payloads.BasketItemPopped, item.Quantity, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	s.logChange(ctx, detail, input.ProductID, "basket item popped")
	return detail, nil
}

// Delete deactivates the basket without touching stock. Reservations are
// returned by the order lifecycle, never here.
func (s *service) Delete(ctx context.Context, basketID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		basket, err := repo.FindByID(ctx, basketID)
		if err != nil {
			return pkgerrors.Internal(err, "load basket")
		}
		if basket == nil {
			return basketNotFound(basketID)
		}
		if _, err := repo.Deactivate(ctx, basket.ID); err != nil {
			return pkgerrors.Internal(err, "deactivate basket")
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, basketID uuid.UUID) (*Detail, error) {
	basket, err := s.repo.FindByID(ctx, basketID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load basket")
	}
	if basket == nil {
		return nil, basketNotFound(basketID)
	}
	return s.withItems(ctx, basket)
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Detail, error) {
	basket, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load basket")
	}
	if basket == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s has no basket", orderID)
	}
	return s.withItems(ctx, basket)
}

func (s *service) withItems(ctx context.Context, basket *models.Basket) (*Detail, error) {
	items, err := s.repo.ListItems(ctx, basket.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load line items")
	}
	return &Detail{Basket: *basket, Items: items}, nil
}

// reserve takes the units and freezes the lot's price, cost and discount on
// the returned line item.
func (s *service) reserve(ctx context.Context, tx *gorm.DB, requested LineItemInput) (models.BasketLineItem, error) {
	res, err := s.stock.ReserveTx(ctx, tx, requested.ProductID, requested.Quantity)
	if err != nil {
		return models.BasketLineItem{}, err
	}
	qty := decimal.NewFromInt(int64(res.Quantity))
	return models.BasketLineItem{
		StockLotID: res.StockLotID,
		ProductID:  res.ProductID,
		Quantity:   res.Quantity,
		UnitPrice:  res.UnitPrice,
		Price:      res.UnitPrice.Mul(qty),
		UnitCost:   res.UnitCost,
		Discount:   res.UnitDiscount.Mul(qty),
	}, nil
}

// loadModifiable locks the owning order before checking the basket, so the
// basket state it returns cannot change until tx ends.
func (s *service) loadModifiable(ctx context.Context, tx *gorm.DB, basketID uuid.UUID) (*models.Basket, *models.Order, error) {
	repo := s.repo.WithTx(tx)
	basket, err := repo.FindByID(ctx, basketID)
	if err != nil {
		return nil, nil, pkgerrors.Internal(err, "load basket")
	}
	if basket == nil {
		return nil, nil, basketNotFound(basketID)
	}
	order, err := s.orders.GetTx(ctx, tx, basket.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if basket, err = repo.FindByID(ctx, basketID); err != nil {
		return nil, nil, pkgerrors.Internal(err, "reload basket")
	}
	if basket == nil {
		return nil, nil, basketNotFound(basketID)
	}
	if !basket.Active {
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "basket %s is no longer active", basket.ID)
	}
	if order.Status != enums.OrderStatusInitiated && order.Status != enums.OrderStatusPaying {
		return nil, nil, notModifiable(order)
	}
	return basket, order, nil
}

// recompute resums the items, persists the totals on basket and order and
// settles the order status: PAYING while items remain, INITIATED once empty.
// A non-empty target forces that status when items remain.
func (s *service) recompute(ctx context.Context, tx *gorm.DB, basket *models.Basket, order *models.Order, target enums.OrderStatus, actor *outbox.ActorRef) (*Detail, error) {
	repo := s.repo.WithTx(tx)
	items, err := repo.ListItems(ctx, basket.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load line items")
	}
	totals := totalsOf(items)
	if err := repo.UpdateTotals(ctx, basket.ID, totals); err != nil {
		return nil, pkgerrors.Internal(err, "update basket totals")
	}
	basket.TotalPrice = totals.TotalPrice
	basket.TotalQuantity = totals.TotalQuantity
	basket.TotalDiscount = totals.TotalDiscount

	to := order.Status
	switch {
	case len(items) == 0:
		to = enums.OrderStatusInitiated
	case target != "":
		to = target
	}
	if err := s.orders.ApplyBasketTx(ctx, tx, order, totals.forOrder(), to, actor); err != nil {
		return nil, err
	}
	return &Detail{Basket: *basket, Items: items}, nil
}

func (s *service) emitChanged(ctx context.Context, tx *gorm.DB, detail *Detail, productID uuid.UUID, change string, qty int, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBasketChanged,
		AggregateType: enums.AggregateBasket,
		AggregateID:   detail.Basket.ID,
		Actor:         actor,
		OccurredAt:    s.now().UTC(),
		Data: payloads.BasketChangedEvent{
			BasketID:      detail.Basket.ID,
			OrderID:       detail.Basket.OrderID,
			ProductID:     productID,
			Change:        change,
			Quantity:      qty,
			TotalPrice:    detail.Basket.TotalPrice,
			TotalQuantity: detail.Basket.TotalQuantity,
		},
	})
}

func (s *service) logChange(ctx context.Context, detail *Detail, productID uuid.UUID, msg string) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"basket_id":      detail.Basket.ID.String(),
		"order_id":       detail.Basket.OrderID.String(),
		"product_id":     productID.String(),
		"total_quantity": detail.Basket.TotalQuantity,
	})
	s.logg.Info(logCtx, msg)
}

func validateItems(items []LineItemInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"index": i, "productId": item.ProductID, "quantity": item.Quantity})
		}
		if _, dup := seen[item.ProductID]; dup {
			return duplicateItem(item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func eventItems(items []models.BasketLineItem) []payloads.BasketItem {
	out := make([]payloads.BasketItem, 0, len(items))
	for _, item := range items {
		out = append(out, payloads.BasketItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Price:     item.Price,
		})
	}
	return out
}

func basketNotFound(id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "basket %s not found", id)
}

func duplicateBasket(order *models.Order) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "order %s already has a basket", order.Code)
}

func duplicateItem(productID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "product %s is already in the basket", productID).
		WithDetails(map[string]any{"productId": productID})
}

func notModifiable(order *models.Order) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s cannot change its basket while %s", order.Code, order.Status).
		WithDetails(map[string]any{"orderId": order.ID, "status": order.Status})
}

func orderExpired(order *models.Order) error {
	return pkgerrors.Newf(pkgerrors.CodeExpired, "order %s has expired", order.Code)
}
