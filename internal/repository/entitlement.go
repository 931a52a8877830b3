package repository

import (
	"context"

	"github.com/Dhoini/Entitlement-service/internal/domain"
)

// EntitlementRepository хранилище записей entitlement.
// Единственный изменяемый разделяемый ресурс системы: писатели — движок
// сверки и write-once назначение клиента в Identity Resolver.
type EntitlementRepository interface {
	// GetByUserID возвращает запись пользователя или ErrNotFound
	GetByUserID(ctx context.Context, userID string) (domain.Entitlement, error)

	// GetByCustomerID возвращает запись по billing-клиенту или ErrNotFound
	GetByCustomerID(ctx context.Context, customerID string) (domain.Entitlement, error)

	// Update атомарный read-modify-write одной записи по ключу.
	// Если записи нет, она создается с IsPremium=false перед вызовом mutate.
	// mutate видит актуальное состояние и меняет только свои поля;
	// ошибки mutate откатывают запись без изменений.
	Update(ctx context.Context, userID string, mutate func(*domain.Entitlement) error) (domain.Entitlement, error)

	// SetCustomerID write-once привязка billing-клиента к пользователю.
	// Возвращает действующий customerID: при гонке проигравший получает
	// уже сохраненное значение, а не перезаписывает его.
	SetCustomerID(ctx context.Context, userID, customerID string) (string, error)
}

// EventLog журнал ID применённых событий провайдера.
// Канал доставки at-least-once, поэтому движок обязан отличать
// повторную доставку от нового события.
type EventLog interface {
	// Seen проверяет, применялось ли событие ранее
	Seen(ctx context.Context, eventID string) (bool, error)

	// Record фиксирует событие как применённое
	Record(ctx context.Context, eventID string) error
}
