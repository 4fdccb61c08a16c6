package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/wacommerce-backend/api/controllers"
	merchantcontrollers "github.com/angelmondragon/wacommerce-backend/api/controllers/merchant"
	webhookcontrollers "github.com/angelmondragon/wacommerce-backend/api/controllers/webhooks"
	"github.com/angelmondragon/wacommerce-backend/api/middleware"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

// Deps are the services the HTTP surface calls into.
type Deps struct {
	DB         controllers.Pinger
	Redis      controllers.Pinger
	Metrics    prometheus.Gatherer
	Dispatcher webhookcontrollers.Dispatcher
	Orders     merchantcontrollers.OrderStatusUpdater
	Customers  merchantcontrollers.CustomerGetter
	States     merchantcontrollers.ConversationResetter
	Catalog    merchantcontrollers.CatalogInvalidator
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/waha", webhookcontrollers.WAHA(deps.Dispatcher, logg))
		r.Post("/cloud", webhookcontrollers.Cloud(deps.Dispatcher, cfg.Gateway.AppSecret, logg))
		r.Get("/cloud", webhookcontrollers.CloudVerify(cfg.Gateway.VerifyToken, logg))
	})

	r.Route("/api/v1/merchant", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
		r.Use(middleware.MerchantAuth(cfg.JWT, logg))
		r.Patch("/orders/{orderId}/status", merchantcontrollers.UpdateOrderStatus(deps.Orders, logg))
		r.Post("/conversations/{customerId}/release", merchantcontrollers.ReleaseConversation(deps.Customers, deps.States, logg))
		r.Post("/catalog/invalidate", merchantcontrollers.InvalidateCatalog(deps.Catalog, logg))
	})

	return r
}
