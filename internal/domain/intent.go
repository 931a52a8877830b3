package domain

import "time"

// IntentKind вид нормализованного намерения
type IntentKind string

const (
	// IntentActivate первая успешная оплата (checkout завершен)
	IntentActivate IntentKind = "activate"

	// IntentRenew продление подписки (оплачен очередной инвойс)
	IntentRenew IntentKind = "renew"

	// IntentDeactivate подписка отменена или удалена
	IntentDeactivate IntentKind = "deactivate"
)

// Intent нормализованное, независимое от провайдера намерение.
// Activate и Renew действуют на запись одинаково, но различаются
// источником и доступностью метаданных.
type Intent struct {
	Kind           IntentKind
	CustomerID     string
	SubscriptionID string // пусто для Deactivate
	PaidAt         *time.Time
	// OccurredAt unix-секунды события у провайдера; используется
	// для отсечения устаревших событий, а не время доставки
	OccurredAt int64
}

// ApplyResult результат применения намерения движком сверки
type ApplyResult int

const (
	// ApplyApplied намерение применено, запись изменена
	ApplyApplied ApplyResult = iota

	// ApplyDuplicate событие уже применялось ранее, запись не тронута
	ApplyDuplicate

	// ApplyRejectedStale событие старше текущего маркера записи
	ApplyRejectedStale

	// ApplyDroppedUnknownCustomer клиента не удалось сопоставить с пользователем
	ApplyDroppedUnknownCustomer
)

// String возвращает строковое представление результата (для логов и метрик)
func (r ApplyResult) String() string {
	switch r {
	case ApplyApplied:
		return "applied"
	case ApplyDuplicate:
		return "duplicate"
	case ApplyRejectedStale:
		return "stale"
	case ApplyDroppedUnknownCustomer:
		return "unknown_customer"
	default:
		return "unknown"
	}
}
