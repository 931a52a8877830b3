package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrUnknownCustomer billing-клиент не сопоставлен ни с одним пользователем
	ErrUnknownCustomer = errors.New("unknown billing customer")

	// ErrDuplicateEvent событие с таким ID уже применялось
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrStaleEvent событие старше текущего маркера записи
	ErrStaleEvent = errors.New("stale event")

	// ErrSignatureInvalid не удалось проверить подпись вебхука
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrMissingIdentifier в запросе отсутствует идентификатор пользователя
	ErrMissingIdentifier = errors.New("missing user identifier")

	// ErrNoBillingAccount у пользователя нет привязанного billing-клиента
	ErrNoBillingAccount = errors.New("no billing account on record")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")

	// ErrExternalServiceUnavailable внешний сервис недоступен
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// StoreError представляет ошибку записи/чтения хранилища entitlement.
// Такие ошибки отдаются транспорту как серверные: провайдер повторит
// доставку, а идемпотентность движка делает повтор безопасным.
type StoreError struct {
	Op          string
	UserID      string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *StoreError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("store error [%s]: %v (user_id: %s)", e.Op, e.OriginalErr, e.UserID)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.OriginalErr)
}

// Unwrap возвращает оригинальную ошибку
func (e *StoreError) Unwrap() error {
	return e.OriginalErr
}

// NewStoreError создает новую ошибку хранилища
func NewStoreError(op, userID string, err error) *StoreError {
	return &StoreError{
		Op:          op,
		UserID:      userID,
		OriginalErr: err,
	}
}

// ExternalServiceError представляет ошибку внешнего сервиса
type ExternalServiceError struct {
	Service     string
	Op          string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service error [%s]: %v", e.Service, e.Op, e.OriginalErr)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// Is проверяет соответствие сентинелу недоступности внешнего сервиса
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalServiceUnavailable
}

// NewExternalServiceError создает новую ошибку внешнего сервиса
func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Op:          op,
		OriginalErr: err,
	}
}
