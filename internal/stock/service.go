package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// ErrNoSupplyHistory is wrapped by LastSupplyUnitCost when a lot was never supplied.
var ErrNoSupplyHistory = errors.New("no supply history")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// supplyIncomeApplier folds a new lineage entry into an existing income record.
type supplyIncomeApplier interface {
	ApplySupply(ctx context.Context, tx *gorm.DB, entry models.SupplyEntry) error
}

// Reservation is the snapshot taken when units leave the lot. Baskets freeze
// it onto their line items.
type Reservation struct {
	StockLotID   uuid.UUID
	ProductID    uuid.UUID
	Quantity     int
	UnitPrice    decimal.Decimal
	UnitCost     decimal.Decimal
	UnitDiscount decimal.Decimal
}

// ReplenishInput describes one supply delivery.
type ReplenishInput struct {
	ProductID         uuid.UUID
	SuppliedProductID uuid.UUID
	Quantity          int
	UnitPrice         decimal.Decimal
	Actor             *outbox.ActorRef
}

type ServiceParams struct {
	Repository *Repository
	DB         txRunner
	Outbox     outboxPublisher
	Income     supplyIncomeApplier
	Metrics    *metrics.StockMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

// Service is the stock ledger: the only writer of stock_lots quantities.
type Service struct {
	repo    *Repository
	tx      txRunner
	outbox  outboxPublisher
	income  supplyIncomeApplier
	metrics *metrics.StockMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:    params.Repository,
		tx:      params.DB,
		outbox:  params.Outbox,
		income:  params.Income,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

// Reserve takes qty units of the product in its own transaction.
func (s *Service) Reserve(ctx context.Context, productID uuid.UUID, qty int) (Reservation, error) {
	var res Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.ReserveTx(ctx, tx, productID, qty)
		return err
	})
	return res, err
}

// ReserveTx takes qty units inside the caller's transaction. The decrement is
// conditional so concurrent reservations can never drive quantity negative.
func (s *Service) ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"productId": productID, "quantity": qty})
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.DecrementIfAvailable(ctx, productID, qty)
	if err != nil {
		s.metrics.IncReservation(metrics.ReservationError)
		return Reservation{}, pkgerrors.Internal(err, "reserve stock")
	}
	lot, err := repo.FindByProduct(ctx, productID)
	if err != nil {
		s.metrics.IncReservation(metrics.ReservationError)
		return Reservation{}, pkgerrors.Internal(err, "load stock lot")
	}
	if !ok {
		if lot == nil {
			s.metrics.IncReservation(metrics.ReservationNotFound)
			return Reservation{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock lot for product %s", productID)
		}
		s.metrics.IncReservation(metrics.ReservationOutOfStock)
		if !lot.Active {
			return Reservation{}, pkgerrors.Newf(pkgerrors.CodeOutOfStock, "stock lot for product %s is inactive", productID).
				WithDetails(map[string]any{"productId": productID, "requested": qty, "available": 0})
		}
		return Reservation{}, pkgerrors.Newf(pkgerrors.CodeOutOfStock, "insufficient stock for product %s", productID).
			WithDetails(map[string]any{"productId": productID, "requested": qty, "available": lot.Quantity})
	}
	if lot == nil {
		s.metrics.IncReservation(metrics.ReservationError)
		return Reservation{}, pkgerrors.New(pkgerrors.CodeInternal, "reserved stock lot vanished")
	}

	unitCost := decimal.Zero
	last, err := repo.LastSupply(ctx, lot.ID)
	if err != nil {
		s.metrics.IncReservation(metrics.ReservationError)
		return Reservation{}, pkgerrors.Internal(err, "load last supply")
	}
	if last != nil {
		unitCost = last.UnitCost
	}

	s.metrics.IncReservation(metrics.ReservationReserved)
	return Reservation{
		StockLotID:   lot.ID,
		ProductID:    productID,
		Quantity:     qty,
		UnitPrice:    lot.UnitPrice,
		UnitCost:     unitCost,
		UnitDiscount: lot.UnitDiscount,
	}, nil
}

// Release returns qty units to the product in its own transaction.
func (s *Service) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseTx(ctx, tx, productID, qty)
	})
}

// ReleaseTx returns qty units inside the caller's transaction. Inactive lots
// still take their stock back; zero is a no-op.
func (s *Service) ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must not be negative").
			WithDetails(map[string]any{"productId": productID, "quantity": qty})
	}
	if qty == 0 {
		return nil
	}
	ok, err := s.repo.WithTx(tx).Increment(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Internal(err, "release stock")
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "stock lot for product %s missing on release", productID)
	}
	s.metrics.AddReleased(qty)
	return nil
}

// Replenish records a supply delivery in its own transaction.
func (s *Service) Replenish(ctx context.Context, input ReplenishInput) (*models.StockLot, error) {
	var lot *models.StockLot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		lot, err = s.ReplenishTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id":     input.ProductID.String(),
		"stock_lot_id":   lot.ID.String(),
		"quantity_added": input.Quantity,
		"quantity":       lot.Quantity,
	})
	s.logg.Info(logCtx, "stock replenished")
	return lot, nil
}

// ReplenishTx adds supplied units, creating the lot on first supply, and
// appends one lineage entry.
func (s *Service) ReplenishTx(ctx context.Context, tx *gorm.DB, input ReplenishInput) (*models.StockLot, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplied quantity must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	suppliedID := input.SuppliedProductID
	if suppliedID == uuid.Nil {
		suppliedID = input.ProductID
	}

	now := s.now().UTC()
	repo := s.repo.WithTx(tx)

	lot := &models.StockLot{
		ProductID:    input.ProductID,
		UnitPrice:    input.UnitPrice,
		UnitDiscount: decimal.Zero,
		Quantity:     input.Quantity,
		Bucket:       types.BucketFor(now),
		Complete:     true,
		Active:       true,
	}
	created, err := repo.CreateIfAbsent(ctx, lot)
	if err != nil {
		return nil, pkgerrors.Internal(err, "create stock lot")
	}
	if !created {
		existing, err := repo.FindByProduct(ctx, input.ProductID)
		if err != nil {
			return nil, pkgerrors.Internal(err, "load stock lot")
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock lot conflict without row")
		}
		if err := repo.ApplySupply(ctx, existing.ID, input.Quantity, input.UnitPrice); err != nil {
			return nil, pkgerrors.Internal(err, "apply supply")
		}
		lot = existing
	}

	sequence := 1
	last, err := repo.LastSupply(ctx, lot.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load last supply")
	}
	if last != nil {
		sequence = last.Sequence + 1
	}
	entry := models.SupplyEntry{
		StockLotID:        lot.ID,
		ProductID:         input.ProductID,
		SuppliedProductID: suppliedID,
		Quantity:          input.Quantity,
		UnitCost:          input.UnitPrice,
		Sequence:          sequence,
		AddedAt:           now,
	}
	if err := repo.InsertSupply(ctx, &entry); err != nil {
		return nil, pkgerrors.Internal(err, "append supply lineage")
	}

	if s.income != nil {
		if err := s.income.ApplySupply(ctx, tx, entry); err != nil {
			return nil, pkgerrors.Internal(err, "apply supply to income")
		}
	}

	fresh, err := repo.FindByProduct(ctx, input.ProductID)
	if err != nil || fresh == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload stock lot")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventStockReplenished,
		AggregateType: enums.AggregateStockLot,
		AggregateID:   fresh.ID,
		Actor:         input.Actor,
		OccurredAt:    now,
		Data: payloads.StockReplenishedEvent{
			StockLotID:        fresh.ID,
			ProductID:         fresh.ProductID,
			SuppliedProductID: suppliedID,
			Quantity:          input.Quantity,
			UnitCost:          input.UnitPrice,
			Sequence:          sequence,
			QuantityAfter:     fresh.Quantity,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Internal(err, "emit stock replenished")
	}
	s.metrics.AddSupplied(input.Quantity)
	return fresh, nil
}

// LastSupplyUnitCost returns the unit cost of the most recent supply entry.
func (s *Service) LastSupplyUnitCost(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	lot, err := s.mustFind(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	last, err := s.repo.LastSupply(ctx, lot.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Internal(err, "load last supply")
	}
	if last == nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNoSupplyHistory, fmt.Sprintf("product %s has no supply history", productID))
	}
	return last.UnitCost, nil
}

// GetAvailableQuantity returns the sellable quantity of the product.
func (s *Service) GetAvailableQuantity(ctx context.Context, productID uuid.UUID) (int, error) {
	lot, err := s.mustFind(ctx, productID)
	if err != nil {
		return 0, err
	}
	return lot.Quantity, nil
}

// Get returns the product's lot.
func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*models.StockLot, error) {
	return s.mustFind(ctx, productID)
}

// Lineage returns the supply entries of the product's lot in sequence order.
func (s *Service) Lineage(ctx context.Context, productID uuid.UUID) ([]models.SupplyEntry, error) {
	lot, err := s.mustFind(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.Lineage(ctx, lot.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load lineage")
	}
	return entries, nil
}

// SetDiscount changes the per-unit discount applied to future reservations.
func (s *Service) SetDiscount(ctx context.Context, productID uuid.UUID, unitDiscount decimal.Decimal) (*models.StockLot, error) {
	if unitDiscount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit discount must not be negative")
	}
	var lot *models.StockLot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.SetDiscount(ctx, productID, unitDiscount)
		if err != nil {
			return pkgerrors.Internal(err, "set unit discount")
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock lot for product %s", productID)
		}
		if lot, err = repo.FindByProduct(ctx, productID); err != nil || lot == nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload stock lot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// Deactivate withdraws the lot from sale. Lots still referenced by an active
// basket cannot be withdrawn.
func (s *Service) Deactivate(ctx context.Context, productID uuid.UUID, actor *outbox.ActorRef) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lot, err := repo.FindByProduct(ctx, productID)
		if err != nil {
			return pkgerrors.Internal(err, "load stock lot")
		}
		if lot == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock lot for product %s", productID)
		}
		if !lot.Active {
			return nil
		}
		refs, err := repo.CountActiveReferences(ctx, lot.ID)
		if err != nil {
			return pkgerrors.Internal(err, "count basket references")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeInUse, "stock lot is referenced by active baskets").
				WithDetails(map[string]any{"productId": productID, "references": refs})
		}
		if err := repo.SetActive(ctx, lot.ID, false); err != nil {
			return pkgerrors.Internal(err, "deactivate stock lot")
		}
		return pkgerrors.Internal(s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockLotDeactivated,
			AggregateType: enums.AggregateStockLot,
			AggregateID:   lot.ID,
			Actor:         actor,
			OccurredAt:    s.now().UTC(),
			Data:          payloads.StockLotDeactivatedEvent{StockLotID: lot.ID, ProductID: productID},
		}), "emit stock lot deactivated")
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", productID.String()), "stock lot deactivated")
	return nil
}

func (s *Service) mustFind(ctx context.Context, productID uuid.UUID) (*models.StockLot, error) {
	lot, err := s.repo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load stock lot")
	}
	if lot == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock lot for product %s", productID)
	}
	return lot, nil
}
