package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	stripeintegration "github.com/Dhoini/Entitlement-service/internal/integration/stripe"
	"github.com/Dhoini/Entitlement-service/internal/metrics"
	"github.com/Dhoini/Entitlement-service/internal/service"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// WebhookHandler обработчик вебхуков платежного провайдера
type WebhookHandler struct {
	verifier   *stripeintegration.WebhookVerifier
	normalizer *stripeintegration.Normalizer
	reconciler service.Reconciler
	metrics    metrics.WebhookMetrics
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(
	verifier *stripeintegration.WebhookVerifier,
	normalizer *stripeintegration.Normalizer,
	reconciler service.Reconciler,
	webhookMetrics metrics.WebhookMetrics,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		normalizer: normalizer,
		reconciler: reconciler,
		metrics:    webhookMetrics,
		log:        log,
	}
}

// HandleStripeWebhook обрабатывает вебхуки от Stripe.
// Подпись проверяется до любого парсинга payload; Applied, Duplicate,
// Rejected и неизвестный клиент подтверждаются единообразно, чтобы
// провайдер не повторял доставку. Серверной ошибкой отвечаем только на
// отказы хранилища: повтор доставки безопасен благодаря идемпотентности.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read webhook body"})
		return
	}

	event, err := h.verifier.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.metrics.IncSignatureFailure()
		h.log.Warn("Webhook rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	h.log.Debugw("Received Stripe webhook event", "eventID", event.ID, "type", string(event.Type))

	intent, ok := h.normalizer.Normalize(event)
	if !ok {
		// Неизвестные виды событий подтверждаются без побочных эффектов
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	result, err := h.reconciler.Apply(c.Request.Context(), event.ID, intent)
	if err != nil {
		var storeErr *domain.StoreError
		if errors.As(err, &storeErr) {
			h.log.Error("Store failure while applying event %s: %v", event.ID, err)
		} else {
			h.log.Error("Failed to apply event %s: %v", event.ID, err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	h.log.Debugw("Webhook event processed", "eventID", event.ID, "outcome", result.String())
	c.JSON(http.StatusOK, gin.H{"received": true})
}
