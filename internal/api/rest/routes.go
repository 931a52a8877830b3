package rest

import (
	"github.com/Dhoini/Entitlement-service/config"
	"github.com/Dhoini/Entitlement-service/internal/api/rest/handlers"
	"github.com/Dhoini/Entitlement-service/internal/api/rest/middleware"
	stripeintegration "github.com/Dhoini/Entitlement-service/internal/integration/stripe"
	"github.com/Dhoini/Entitlement-service/internal/metrics"
	"github.com/Dhoini/Entitlement-service/internal/service"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies собранные сервисы, необходимые маршрутизатору
type Dependencies struct {
	Verifier    *stripeintegration.WebhookVerifier
	Normalizer  *stripeintegration.Normalizer
	Reconciler  service.Reconciler
	Checkout    service.CheckoutService
	Entitlement service.EntitlementService
	Metrics     metrics.WebhookMetrics
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps Dependencies, cfg *config.Config, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Инициализация обработчиков
	webhookHandler := handlers.NewWebhookHandler(deps.Verifier, deps.Normalizer, deps.Reconciler, deps.Metrics, log)
	checkoutHandler := handlers.NewCheckoutHandler(deps.Checkout, log)
	entitlementHandler := handlers.NewEntitlementHandler(deps.Entitlement, cfg.Storage.DefaultUserID, log)

	v1 := r.Group("/api/v1")
	{
		checkout := v1.Group("/checkout")
		{
			checkout.POST("/session", checkoutHandler.CreateCheckoutSession)
		}

		portal := v1.Group("/portal")
		{
			portal.POST("/session", checkoutHandler.CreatePortalSession)
		}

		v1.GET("/entitlement", entitlementHandler.GetEntitlement)
	}

	// Вебхуки на корневом уровне роутера
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	return r
}
