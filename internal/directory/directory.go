// Package directory gives the order core read access to customers and
// delivery zones. Both tables are maintained by external back office CRUD.
package directory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/repo"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

type Directory struct {
	repo.Base
}

func New(db *gorm.DB) *Directory {
	return &Directory{Base: repo.NewBase(db)}
}

// Customer loads the customer through tx, or the base connection when tx is nil.
func (d *Directory) Customer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	ok, err := d.WithTx(tx).First(ctx, &customer, "id = ?", id)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load customer")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "customer %s not found", id)
	}
	return &customer, nil
}

// DeliveryZone loads the zone through tx, or the base connection when tx is nil.
func (d *Directory) DeliveryZone(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	ok, err := d.WithTx(tx).First(ctx, &zone, "id = ?", id)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load delivery zone")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "delivery zone %s not found", id)
	}
	return &zone, nil
}
