package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshpress-app/freshpress-backend/api/controllers"
	"github.com/freshpress-app/freshpress-backend/api/middleware"
	"github.com/freshpress-app/freshpress-backend/internal/dispatch"
	"github.com/freshpress-app/freshpress-backend/internal/orders"
	"github.com/freshpress-app/freshpress-backend/pkg/config"
	"github.com/freshpress-app/freshpress-backend/pkg/db"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
	"github.com/freshpress-app/freshpress-backend/pkg/redis"
)

// NewAPIRouter builds the storefront API surface: order intake plus health.
func NewAPIRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	bot controllers.BotStatus,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(bot))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", controllers.CreateOrder(ordersService, logg))
		r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
	})

	return r
}

// NewWorkerRouter builds the dispatch worker surface: the notify endpoint the
// API delegates to, health for the sibling probe, and Prometheus metrics.
func NewWorkerRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	bot controllers.BotStatus,
	dispatchService dispatch.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(bot))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Post("/notify-order", controllers.NotifyOrder(dispatchService, logg))
	r.Handle("/metrics", promhttp.Handler())

	return r
}
