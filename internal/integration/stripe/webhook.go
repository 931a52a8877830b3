package stripe

import (
	"fmt"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// WebhookVerifier проверяет подпись входящих вебхук-событий Stripe.
// Проверка выполняется до любого парсинга payload.
type WebhookVerifier struct {
	secret string
	log    *logger.Logger
}

// NewWebhookVerifier создает новый верификатор вебхуков
func NewWebhookVerifier(secret string, log *logger.Logger) *WebhookVerifier {
	return &WebhookVerifier{
		secret: secret,
		log:    log,
	}
}

// VerifyEvent проверяет подпись и возвращает разобранное событие.
// При неверной подписи возвращает domain.ErrSignatureInvalid: состояние
// не меняется, транспорт отвечает клиентской ошибкой.
func (v *WebhookVerifier) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, v.secret)
	if err != nil {
		v.log.Warnw("Webhook signature verification failed", "error", err)
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	return event, nil
}
