package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

// Service records money collected for orders. Amounts never change once
// written; reversal only deactivates.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordPaymentInput) (*models.PaymentRecord, error)
	DeactivateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error)
}

type service struct {
	repo Repository
}

// RecordPaymentInput captures the immutable data a payment record requires.
type RecordPaymentInput struct {
	OrderID   uuid.UUID           `json:"order_id"`
	Amount    decimal.Decimal     `json:"amount"`
	Method    enums.PaymentMethod `json:"method"`
	Reference *string             `json:"reference,omitempty"`
}

// NewService wires a payments service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordPaymentInput) (*models.PaymentRecord, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must not be negative")
	}
	if input.Method == "" {
		input.Method = enums.PaymentMethodCash
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.Method)
	}

	record := &models.PaymentRecord{
		OrderID:   input.OrderID,
		Amount:    input.Amount,
		Method:    input.Method,
		Reference: input.Reference,
		Active:    true,
	}
	if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, pkgerrors.Internal(err, "record payment")
	}
	return record, nil
}

func (s *service) DeactivateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	n, err := s.repo.WithTx(tx).DeactivateByOrderID(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Internal(err, "deactivate payments")
	}
	return n, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	records, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "list payments")
	}
	return records, nil
}
