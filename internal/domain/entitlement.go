package domain

import "time"

// Entitlement запись о premium-праве пользователя.
// Ровно одна запись на внутренний userID; запись никогда не удаляется,
// деактивация только сбрасывает флаг и ID подписки.
type Entitlement struct {
	UserID                string     `json:"user_id"`
	BillingCustomerID     string     `json:"billing_customer_id,omitempty"`
	BillingSubscriptionID string     `json:"billing_subscription_id,omitempty"`
	IsPremium             bool       `json:"is_premium"`
	LastPaidAt            *time.Time `json:"last_paid_at,omitempty"`
	// LastEventAt unix-секунды последнего применённого события провайдера.
	// Монотонный маркер: событие со штампом строго меньше отбрасывается как устаревшее.
	LastEventAt int64     `json:"last_event_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ApplyIntent выполняет частичный merge намерения в запись.
// Трогает только поля, определяемые намерением: BillingCustomerID
// устанавливается исключительно Identity Resolver-ом и здесь не меняется.
func (e *Entitlement) ApplyIntent(intent Intent) {
	switch intent.Kind {
	case IntentActivate, IntentRenew:
		e.IsPremium = true
		e.BillingSubscriptionID = intent.SubscriptionID
		if intent.PaidAt != nil {
			paidAt := *intent.PaidAt
			e.LastPaidAt = &paidAt
		}
	case IntentDeactivate:
		e.IsPremium = false
		e.BillingSubscriptionID = ""
	}
	e.LastEventAt = intent.OccurredAt
}
