package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/backoffice-backend/api/controllers"
	"github.com/angelmondragon/backoffice-backend/api/middleware"
	"github.com/angelmondragon/backoffice-backend/internal/baskets"
	"github.com/angelmondragon/backoffice-backend/internal/orders"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/backoffice-backend/pkg/redis"
)

// RedisStore is the redis surface the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RevocationChecker
	controllers.TokenRevoker
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators wired by cmd/api. Redis may be nil in
// which case idempotency, rate limiting and revocation are disabled.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       RedisStore
	Orders      orders.Service
	Baskets     baskets.Service
	Stock       controllers.StockService
	Income      controllers.IncomeService
	DeadLetters controllers.DeadLetterReader
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore pkgredis.IdempotencyStore
		revocation       middleware.RevocationChecker
		revoker          controllers.TokenRevoker
		limiter          interface {
			FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error)
		}
	)
	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		revocation = deps.Redis
		revoker = deps.Redis
		limiter = deps.Redis
		pingers["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.RateLimit.Window, cfg.RateLimit.Writes)
	orderWriters := middleware.RequireRole(logg, enums.EmployeeRoleManager, enums.EmployeeRoleClerk)
	managers := middleware.RequireRole(logg, enums.EmployeeRoleManager)
	admins := middleware.RequireRole(logg, enums.EmployeeRoleAdmin)
	once := middleware.Idempotency(idempotencyStore, middleware.IdempotencyTTL, logg)
	onceCritical := middleware.Idempotency(idempotencyStore, middleware.CriticalIdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, revocation, logg))
		r.Use(middleware.RateLimit(writePolicy, limiter, logg))

		r.Post("/auth/logout", controllers.Logout(cfg.JWT, revoker, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.GetOrderByCode(deps.Orders, logg))
			r.With(orderWriters, once).Post("/", controllers.CreateOrder(deps.Orders, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(deps.Orders, logg))
				r.Get("/basket", controllers.GetOrderBasket(deps.Baskets, logg))

				r.Group(func(r chi.Router) {
					r.Use(orderWriters)
					r.Delete("/", controllers.DeleteOrder(deps.Orders, logg))
					r.With(once).Post("/basket", controllers.AttachBasket(deps.Baskets, logg))
					r.Patch("/status", controllers.ChangeOrderStatus(deps.Orders, logg))
					r.Patch("/delivery-zone", controllers.ChangeDeliveryZone(deps.Orders, logg))
					r.With(onceCritical).Post("/archive", controllers.ArchiveOrder(deps.Orders, logg))
				})
			})
		})

		r.Route("/baskets/{basketId}", func(r chi.Router) {
			r.Get("/", controllers.GetBasket(deps.Baskets, logg))
			r.With(orderWriters, once).Post("/items", controllers.PushLineItem(deps.Baskets, logg))
			r.With(orderWriters).Delete("/items/{productId}", controllers.PopLineItem(deps.Baskets, logg))
		})

		r.Route("/stock/{productId}", func(r chi.Router) {
			r.Get("/", controllers.GetStockLot(deps.Stock, logg))
			r.Get("/available", controllers.GetAvailableQuantity(deps.Stock, logg))
			r.Get("/lineage", controllers.GetStockLineage(deps.Stock, logg))
			r.With(managers, onceCritical).Post("/replenish", controllers.ReplenishStock(deps.Stock, logg))
		})

		r.Route("/income/{year}/{month}/{day}", func(r chi.Router) {
			r.Get("/", controllers.GetIncome(deps.Income, logg))
			r.With(managers).Post("/", controllers.GenerateIncome(deps.Income, logg))
		})

		r.With(admins).Get("/admin/outbox/dead-letters", controllers.ListDeadLetters(deps.DeadLetters, logg))
	})

	return r
}
