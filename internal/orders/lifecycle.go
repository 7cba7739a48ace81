package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox/payloads"
)

// Expire releases the reservations of an unpaid order past its expiration
// and marks it EXPIRED. A second call finds the order EXPIRED and returns a
// state conflict, which the sweep treats as already handled.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID) error {
	var order *models.Order
	var released int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.GetTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		from := order.Status
		if from != enums.OrderStatusInitiated && from != enums.OrderStatusPaying {
			return invalidTransition(from, enums.OrderStatusExpired)
		}
		if !order.ExpirationAt.Before(now) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s has not expired yet", order.Code).
				WithDetails(map[string]any{"expirationAt": order.ExpirationAt})
		}

		sale, ok, err := s.gatherSale(ctx, tx, order)
		if err != nil {
			return err
		}
		if ok {
			if released, err = s.releaseItems(ctx, tx, sale.Items); err != nil {
				return err
			}
			if err := s.repo.WithTx(tx).DeactivateBasket(ctx, sale.Basket.ID); err != nil {
				return pkgerrors.Internal(err, "deactivate basket")
			}
		}

		changed, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, enums.OrderStatusExpired, nil)
		if err != nil {
			return pkgerrors.Internal(err, "expire order")
		}
		if !changed {
			return invalidTransition(from, enums.OrderStatusExpired)
		}
		order.Status = enums.OrderStatusExpired

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    now,
			Data: payloads.OrderExpiredEvent{
				OrderID:       order.ID,
				Code:          order.Code,
				PriorStatus:   from,
				ReleasedUnits: released,
				ExpiredAt:     now,
			},
		})
	})
	if err != nil {
		return err
	}
	logCtx := s.logg.WithField(s.logg.WithOrder(ctx, order.ID.String(), order.Code), "released_units", released)
	s.logg.Info(logCtx, "order expired")
	return nil
}

// Archive reverses an order from any status but ARCHIVED.
func (s *service) Archive(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*ReversalOutcome, error) {
	var order *models.Order
	var outcome *ReversalOutcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.GetTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusArchived {
			return invalidTransition(order.Status, enums.OrderStatusArchived)
		}
		outcome, err = s.archiveTx(ctx, tx, order, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logReversal(ctx, order, outcome, "order archived")
	return outcome, nil
}

// Delete archives the order when needed and soft-deletes it. Re-running on an
// archived order completes the deletion; a deleted order is not found.
func (s *service) Delete(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	var order *models.Order
	outcome := &ReversalOutcome{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.GetTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		outcome.PriorStatus = order.Status
		if order.Status != enums.OrderStatusArchived {
			if outcome, err = s.archiveTx(ctx, tx, order, actor); err != nil {
				return err
			}
		}
		n, err := s.payments.DeactivateForOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		outcome.Payments += n

		if err := s.repo.WithTx(tx).SoftDelete(ctx, order.ID); err != nil {
			return pkgerrors.Internal(err, "delete order")
		}
		now := s.now().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data:          payloads.OrderDeletedEvent{OrderID: order.ID, Code: order.Code, DeletedAt: now},
		})
	})
	if err != nil {
		return err
	}
	s.logReversal(ctx, order, outcome, "order deleted")
	return nil
}

// archiveTx gathers the basket, its items and the income contribution first,
// then applies every reversal write inside tx.
func (s *service) archiveTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) (*ReversalOutcome, error) {
	prior := order.Status
	outcome := &ReversalOutcome{PriorStatus: prior}

	sale, hasBasket, err := s.gatherSale(ctx, tx, order)
	if err != nil {
		return nil, err
	}

	if hasBasket && prior.HoldsReservation() {
		if outcome.ReleasedUnits, err = s.releaseItems(ctx, tx, sale.Items); err != nil {
			return nil, err
		}
	}
	if hasBasket {
		if err := s.repo.WithTx(tx).DeactivateBasket(ctx, sale.Basket.ID); err != nil {
			return nil, pkgerrors.Internal(err, "deactivate basket")
		}
	}
	if outcome.Payments, err = s.payments.DeactivateForOrder(ctx, tx, order.ID); err != nil {
		return nil, err
	}
	if hasBasket && prior.IsSettled() {
		if outcome.IncomeReversed, err = s.income.ReverseOrder(ctx, tx, sale); err != nil {
			return nil, err
		}
	}

	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, prior, enums.OrderStatusArchived, map[string]any{
		"active": false,
	})
	if err != nil {
		return nil, pkgerrors.Internal(err, "archive order")
	}
	if !ok {
		return nil, invalidTransition(prior, enums.OrderStatusArchived)
	}
	order.Status = enums.OrderStatusArchived
	order.Active = false

	now := s.now().UTC()
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderArchived,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.OrderArchivedEvent{
			OrderID:        order.ID,
			Code:           order.Code,
			PriorStatus:    prior,
			ReleasedUnits:  outcome.ReleasedUnits,
			IncomeReversed: outcome.IncomeReversed,
			ArchivedAt:     now,
		},
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *service) releaseItems(ctx context.Context, tx *gorm.DB, items []models.BasketLineItem) (int, error) {
	released := 0
	for _, item := range items {
		if err := s.stock.ReleaseTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return 0, err
		}
		released += item.Quantity
	}
	return released, nil
}

func (s *service) logReversal(ctx context.Context, order *models.Order, outcome *ReversalOutcome, msg string) {
	logCtx := s.logg.WithFields(s.logg.WithOrder(ctx, order.ID.String(), order.Code), map[string]any{
		"prior_status":    outcome.PriorStatus.String(),
		"released_units":  outcome.ReleasedUnits,
		"income_reversed": outcome.IncomeReversed,
	})
	s.logg.Info(logCtx, msg)
}
