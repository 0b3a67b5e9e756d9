package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agromart/agromart-backend/api/controllers"
	negotiationcontrollers "github.com/agromart/agromart-backend/api/controllers/negotiations"
	"github.com/agromart/agromart-backend/api/middleware"
	"github.com/agromart/agromart-backend/internal/negotiations"
	"github.com/agromart/agromart-backend/internal/notifications"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	pkgredis "github.com/agromart/agromart-backend/pkg/redis"
)

// redisStore is the slice of the Redis client the HTTP layer depends on.
type redisStore interface {
	controllers.Pinger
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	httpMetrics *metrics.HTTPMetrics,
	negotiationService negotiations.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
		middleware.Metrics(httpMetrics),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	mutationPolicy := middleware.MutationRateLimitPolicy{
		Window: cfg.RateLimit.MutationWindow,
		Limit:  cfg.RateLimit.MutationLimit,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.MutationRateLimit(mutationPolicy, redisClient, logg))
		idempotentStart := middleware.Idempotency(redisClient, middleware.IdempotencyPolicy{
			TTL:   cfg.Eventing.HTTPIdempotencyTTL,
			Lease: cfg.Eventing.IdempotencyLease,
		}, logg)
		idempotentCheckout := middleware.Idempotency(redisClient, middleware.IdempotencyPolicy{
			TTL:   cfg.Eventing.CheckoutIdempotencyTTL,
			Lease: cfg.Eventing.IdempotencyLease,
		}, logg)

		r.Route("/negotiations", func(r chi.Router) {
			r.With(idempotentStart).Post("/", negotiationcontrollers.Start(negotiationService, logg))
			r.Get("/", negotiationcontrollers.List(negotiationService, logg))
			r.Get("/conversation/{conversationId}", negotiationcontrollers.ListByConversation(negotiationService, logg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", negotiationcontrollers.Get(negotiationService, logg))
				r.Delete("/", negotiationcontrollers.Cancel(negotiationService, logg))
				r.Post("/counter-offer", negotiationcontrollers.CounterOffer(negotiationService, logg))
				r.Post("/accept", negotiationcontrollers.Accept(negotiationService, logg))
				r.Post("/reject", negotiationcontrollers.Reject(negotiationService, logg))
				r.Get("/delivery-methods", negotiationcontrollers.DeliveryMethods(negotiationService, logg))
				r.Post("/calculate-delivery", negotiationcontrollers.CalculateDelivery(negotiationService, logg))
				r.With(idempotentCheckout).Post("/checkout", negotiationcontrollers.Checkout(negotiationService, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})
	})

	return r
}
