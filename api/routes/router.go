package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unipay-app/unipay-backend/api/controllers"
	webhookcontrollers "github.com/unipay-app/unipay-backend/api/controllers/webhooks"
	"github.com/unipay-app/unipay-backend/api/middleware"
	"github.com/unipay-app/unipay-backend/internal/scheduler"
	"github.com/unipay-app/unipay-backend/internal/webhooks/provider"
	"github.com/unipay-app/unipay-backend/pkg/config"
	"github.com/unipay-app/unipay-backend/pkg/db"
	"github.com/unipay-app/unipay-backend/pkg/logger"
	"github.com/unipay-app/unipay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	schedulerService *scheduler.Service,
	providerWebhookService *provider.Service,
	providerWebhookGuard *provider.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisP,
		}))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(
			providerWebhookService,
			providerWebhookGuard,
			cfg.Provider.WebhookSecret,
			logg,
		))
	})

	r.Route("/api/admin/v1/billing", func(r chi.Router) {
		r.Post("/sweep", controllers.AdminBillingSweep(schedulerService, cfg.Billing, logg, nil))
	})

	return r
}
