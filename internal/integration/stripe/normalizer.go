package stripe

import (
	"encoding/json"
	"time"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/stripe/stripe-go/v78"
)

// Виды обрабатываемых событий Stripe
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Normalizer преобразует сырые события Stripe в провайдер-независимые
// намерения. Из объектов провайдера извлекаются только нужные поля,
// остальной payload не интерпретируется.
type Normalizer struct {
	log *logger.Logger
}

// NewNormalizer создает новый нормализатор событий
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// checkoutSessionData поля checkout-сессии, нужные для Activate
type checkoutSessionData struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// invoiceData поля инвойса, нужные для Renew
type invoiceData struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// subscriptionData поля подписки, нужные для Deactivate
type subscriptionData struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

// Normalize сопоставляет событие ровно одному намерению.
// Второй результат false означает Ignore: неизвестные виды событий
// подтверждаются без побочных эффектов и никогда не считаются ошибкой.
func (n *Normalizer) Normalize(event stripe.Event) (domain.Intent, bool) {
	switch string(event.Type) {
	case EventCheckoutCompleted:
		var session checkoutSessionData
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			n.log.Warnw("Failed to parse checkout session payload", "eventID", event.ID, "error", err)
			return domain.Intent{}, false
		}
		if session.Customer == "" {
			n.log.Warnw("Checkout session without customer, ignoring", "eventID", event.ID)
			return domain.Intent{}, false
		}
		return n.paidIntent(domain.IntentActivate, session.Customer, session.Subscription, event.Created), true

	case EventInvoicePaid:
		var invoice invoiceData
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			n.log.Warnw("Failed to parse invoice payload", "eventID", event.ID, "error", err)
			return domain.Intent{}, false
		}
		if invoice.Customer == "" {
			n.log.Warnw("Invoice without customer, ignoring", "eventID", event.ID)
			return domain.Intent{}, false
		}
		return n.paidIntent(domain.IntentRenew, invoice.Customer, invoice.Subscription, event.Created), true

	case EventSubscriptionDeleted:
		var subscription subscriptionData
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			n.log.Warnw("Failed to parse subscription payload", "eventID", event.ID, "error", err)
			return domain.Intent{}, false
		}
		if subscription.Customer == "" {
			n.log.Warnw("Subscription event without customer, ignoring", "eventID", event.ID)
			return domain.Intent{}, false
		}
		return domain.Intent{
			Kind:       domain.IntentDeactivate,
			CustomerID: subscription.Customer,
			OccurredAt: event.Created,
		}, true

	default:
		n.log.Debugw("Ignored webhook event type", "type", string(event.Type), "eventID", event.ID)
		return domain.Intent{}, false
	}
}

// paidIntent собирает активирующее намерение c временем оплаты
func (n *Normalizer) paidIntent(kind domain.IntentKind, customerID, subscriptionID string, created int64) domain.Intent {
	paidAt := time.Unix(created, 0).UTC()
	return domain.Intent{
		Kind:           kind,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		PaidAt:         &paidAt,
		OccurredAt:     created,
	}
}
