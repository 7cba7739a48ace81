package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/backoffice-backend/internal/orders"
	"github.com/angelmondragon/backoffice-backend/internal/stock"
	pkgAuth "github.com/angelmondragon/backoffice-backend/pkg/auth"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrders struct {
	orders.Service
	created int
}

func (s *stubOrders) Create(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.created++
	return &models.Order{ID: uuid.New(), CustomerID: input.CustomerID, Status: enums.OrderStatusInitiated}, nil
}

type stubStock struct{}

func (stubStock) Get(context.Context, uuid.UUID) (*models.StockLot, error) {
	return &models.StockLot{}, nil
}

func (stubStock) GetAvailableQuantity(context.Context, uuid.UUID) (int, error) { return 7, nil }

func (stubStock) Lineage(context.Context, uuid.UUID) ([]models.SupplyEntry, error) {
	return nil, nil
}

func (stubStock) Replenish(_ context.Context, input stock.ReplenishInput) (*models.StockLot, error) {
	return &models.StockLot{ProductID: input.ProductID, Quantity: input.Quantity}, nil
}

type memoryRedis struct {
	data    map[string]string
	revoked map[string]bool
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, revoked: map[string]bool{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) { return m.data[key], nil }

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	return m.revoked[tokenID], nil
}

func (m *memoryRedis) RevokeToken(_ context.Context, tokenID string, _ time.Duration) error {
	m.revoked[tokenID] = true
	return nil
}

func (m *memoryRedis) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return true, 1, nil
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

type stubDeadLetters struct{}

func (stubDeadLetters) List(context.Context, outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	return []models.OutboxDLQ{}, nil
}

func (stubDeadLetters) CountByReason(context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	return map[enums.OutboxDLQErrorReason]int64{}, nil
}

type routerHarness struct {
	handler http.Handler
	cfg     *config.Config
	orders  *stubOrders
	redis   *memoryRedis
}

func newRouterHarness(t *testing.T) routerHarness {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "dev"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "backoffice", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Writes: 100},
	}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	h := routerHarness{cfg: cfg, orders: &stubOrders{}, redis: newMemoryRedis()}
	h.handler = NewRouter(cfg, logg, Dependencies{
		DB:          stubPinger{},
		Redis:       h.redis,
		Orders:      h.orders,
		Stock:       stubStock{},
		DeadLetters: stubDeadLetters{},
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
	})
	return h
}

func (h routerHarness) token(t *testing.T, role enums.EmployeeRole, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		EmployeeID: uuid.New(),
		Role:       role,
		JTI:        jti,
	})
	require.NoError(t, err)
	return token
}

func (h routerHarness) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := newRouterHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/ready", "", "", nil).Code)
}

func TestAPIRequiresToken(t *testing.T) {
	h := newRouterHarness(t)
	rec := h.do(http.MethodGet, "/api/v1/stock/"+uuid.NewString()+"/available", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewerCanReadButNotMutate(t *testing.T) {
	h := newRouterHarness(t)
	token := h.token(t, enums.EmployeeRoleViewer, "viewer-1")

	rec := h.do(http.MethodGet, "/api/v1/stock/"+uuid.NewString()+"/available", token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"customerId":"` + uuid.NewString() + `","deliveryZoneId":"` + uuid.NewString() + `"}`
	rec = h.do(http.MethodPost, "/api/v1/orders", token, body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, h.orders.created)
}

func TestReplenishRequiresManager(t *testing.T) {
	h := newRouterHarness(t)
	body := `{"suppliedProductId":"` + uuid.NewString() + `","quantity":5,"unitPrice":"10"}`
	path := "/api/v1/stock/" + uuid.NewString() + "/replenish"

	rec := h.do(http.MethodPost, path, h.token(t, enums.EmployeeRoleClerk, "clerk-1"), body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, path, h.token(t, enums.EmployeeRoleManager, "manager-1"), body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderHonorsIdempotencyKey(t *testing.T) {
	h := newRouterHarness(t)
	token := h.token(t, enums.EmployeeRoleClerk, "clerk-2")
	body := `{"customerId":"` + uuid.NewString() + `","deliveryZoneId":"` + uuid.NewString() + `"}`
	headers := map[string]string{"Idempotency-Key": "order-1"}

	first := h.do(http.MethodPost, "/api/v1/orders", token, body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := h.do(http.MethodPost, "/api/v1/orders", token, body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, 1, h.orders.created)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newRouterHarness(t)
	token := h.token(t, enums.EmployeeRoleClerk, "clerk-3")

	rec := h.do(http.MethodPost, "/api/v1/auth/logout", token, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/stock/"+uuid.NewString()+"/available", token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpointExposesHTTPMetrics(t *testing.T) {
	h := newRouterHarness(t)
	h.do(http.MethodGet, "/health/live", "", "", nil)

	rec := h.do(http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}

func TestDeadLettersAreAdminOnly(t *testing.T) {
	h := newRouterHarness(t)
	path := "/api/v1/admin/outbox/dead-letters"

	rec := h.do(http.MethodGet, path, h.token(t, enums.EmployeeRoleManager, "manager-2"), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, path, h.token(t, enums.EmployeeRoleAdmin, "admin-1"), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	h := newRouterHarness(t)
	rec := h.do(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), "", "", map[string]string{"X-Request-Id": "trace-77"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requestId":"trace-77"`)
}
