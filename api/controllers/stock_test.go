package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/backoffice-backend/internal/stock"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

type stubStockService struct {
	available int
	lot       *models.StockLot
	lineage   []models.SupplyEntry
	replenish stock.ReplenishInput
	err       error
}

func (s *stubStockService) Get(_ context.Context, _ uuid.UUID) (*models.StockLot, error) {
	return s.lot, s.err
}

func (s *stubStockService) GetAvailableQuantity(_ context.Context, _ uuid.UUID) (int, error) {
	return s.available, s.err
}

func (s *stubStockService) Lineage(_ context.Context, _ uuid.UUID) ([]models.SupplyEntry, error) {
	return s.lineage, s.err
}

func (s *stubStockService) Replenish(_ context.Context, input stock.ReplenishInput) (*models.StockLot, error) {
	s.replenish = input
	return s.lot, s.err
}

func TestGetAvailableQuantity(t *testing.T) {
	productID := uuid.New()
	svc := &stubStockService{available: 6}

	rec := httptest.NewRecorder()
	GetAvailableQuantity(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/", nil, map[string]string{"productId": productID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got availableResponse
	decodeData(t, rec, &got)
	assert.Equal(t, productID, got.ProductID)
	assert.Equal(t, 6, got.Available)
}

func TestGetAvailableQuantityNotFound(t *testing.T) {
	svc := &stubStockService{err: pkgerrors.New(pkgerrors.CodeNotFound, "stock lot not found")}

	rec := httptest.NewRecorder()
	GetAvailableQuantity(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/", nil, map[string]string{"productId": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplenishStockParsesDecimalPrice(t *testing.T) {
	productID, suppliedID := uuid.New(), uuid.New()
	svc := &stubStockService{lot: &models.StockLot{ProductID: productID, Quantity: 12}}

	body := `{"suppliedProductId":"` + suppliedID.String() + `","quantity":12,"unitPrice":"99.50"}`
	rec := httptest.NewRecorder()
	ReplenishStock(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", strings.NewReader(body), map[string]string{"productId": productID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productID, svc.replenish.ProductID)
	assert.Equal(t, suppliedID, svc.replenish.SuppliedProductID)
	assert.Equal(t, 12, svc.replenish.Quantity)
	assert.True(t, svc.replenish.UnitPrice.Equal(decimal.RequireFromString("99.5")))
	require.NotNil(t, svc.replenish.Actor)
}

func TestReplenishStockRejectsZeroQuantity(t *testing.T) {
	svc := &stubStockService{}
	body := `{"suppliedProductId":"` + uuid.NewString() + `","quantity":0,"unitPrice":10}`

	rec := httptest.NewRecorder()
	ReplenishStock(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", strings.NewReader(body), map[string]string{"productId": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStockLineage(t *testing.T) {
	svc := &stubStockService{lineage: []models.SupplyEntry{{Sequence: 1, Quantity: 10}, {Sequence: 2, Quantity: 5}}}

	rec := httptest.NewRecorder()
	GetStockLineage(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/", nil, map[string]string{"productId": uuid.NewString()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.SupplyEntry
	decodeData(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Sequence)
}
