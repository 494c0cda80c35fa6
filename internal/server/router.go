package server

import (
	"log/slog"
	"net/http"
	"time"

	"shopmunim-backend/internal/config"
	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Handlers groups every route set mounted by NewRouter.
type Handlers struct {
	Health       handler.HealthHandler
	Auth         handler.AuthHandler
	FCM          handler.FCMHandler
	Shops        handler.ShopHandler
	Customers    handler.CustomerHandler
	Products     handler.ProductHandler
	Transactions handler.TransactionHandler
	Me           handler.MeHandler
}

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config, logger *slog.Logger, rdb *redis.Client, users UserLoader, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Device-Name"},
		ExposedHeaders:   []string{"Content-Disposition", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(200, 1*time.Minute))

	h.Health.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())
	r.Group(func(pub chi.Router) {
		pub.Use(httprate.LimitByIP(20, 1*time.Minute))
		h.Auth.RegisterRoutes(pub)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(cfg.JWTSecret, users))
		if rdb != nil {
			pr.Use(Idempotency(rdb, cfg.IdempotencyTTL, logger))
		}
		h.Auth.RegisterProtectedRoutes(pr)
		h.FCM.RegisterRoutes(pr)
		h.Shops.RegisterRoutes(pr)
		h.Me.RegisterRoutes(pr)

		pr.Group(func(or chi.Router) {
			or.Use(RequireRole(domain.RoleShopOwner, domain.RoleAdmin))
			h.Shops.RegisterOwnerRoutes(or)
			h.Customers.RegisterRoutes(or)
			h.Products.RegisterRoutes(or)
			h.Transactions.RegisterRoutes(or)
		})
	})

	return r
}
