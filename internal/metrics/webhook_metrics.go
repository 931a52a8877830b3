package metrics

import (
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookMetrics интерфейс для метрик обработки событий
type WebhookMetrics interface {
	// IncEventProcessed учитывает событие с исходом applied/duplicate/stale/unknown_customer
	IncEventProcessed(outcome string)

	// IncSignatureFailure учитывает отклоненный по подписи вебхук
	IncSignatureFailure()

	// IncCheckoutSession учитывает созданную checkout-сессию
	IncCheckoutSession()
}

type webhookMetrics struct {
	log               *logger.Logger
	eventsProcessed   *prometheus.CounterVec
	signatureFailures prometheus.Counter
	checkoutSessions  prometheus.Counter
}

// NewWebhookMetrics создает новые метрики обработки событий
func NewWebhookMetrics(registry *prometheus.Registry, log *logger.Logger) WebhookMetrics {
	eventsProcessed := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_events_processed_total",
			Help: "The total number of processed provider events by outcome",
		},
		[]string{"outcome"},
	)

	signatureFailures := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "entitlement_webhook_signature_failures_total",
			Help: "The total number of webhooks rejected due to invalid signature",
		},
	)

	checkoutSessions := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "entitlement_checkout_sessions_total",
			Help: "The total number of created checkout sessions",
		},
	)

	return &webhookMetrics{
		log:               log,
		eventsProcessed:   eventsProcessed,
		signatureFailures: signatureFailures,
		checkoutSessions:  checkoutSessions,
	}
}

// IncEventProcessed увеличивает счетчик обработанных событий
func (m *webhookMetrics) IncEventProcessed(outcome string) {
	m.eventsProcessed.WithLabelValues(outcome).Inc()
}

// IncSignatureFailure увеличивает счетчик отклоненных по подписи вебхуков
func (m *webhookMetrics) IncSignatureFailure() {
	m.signatureFailures.Inc()
}

// IncCheckoutSession увеличивает счетчик checkout-сессий
func (m *webhookMetrics) IncCheckoutSession() {
	m.checkoutSessions.Inc()
}
