package service

import (
	"context"
	"errors"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/integration/stripe"
	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
)

// IdentityService сопоставляет внутренних пользователей и billing-клиентов
type IdentityService interface {
	// ResolveOrCreateCustomer возвращает billing-клиента пользователя,
	// при необходимости создавая его у провайдера. Идемпотентен.
	ResolveOrCreateCustomer(ctx context.Context, userID string) (string, error)

	// CustomerToUser обратное сопоставление billing-клиента с пользователем.
	// Возвращает domain.ErrUnknownCustomer, если атрибуция невозможна.
	CustomerToUser(ctx context.Context, customerID string) (string, error)
}

// identityService реализация IdentityService
type identityService struct {
	repo    repository.EntitlementRepository
	gateway stripe.Gateway
	locks   *userLocks
	log     *logger.Logger
}

// NewIdentityService создает новый сервис сопоставления пользователей
func NewIdentityService(repo repository.EntitlementRepository, gateway stripe.Gateway, log *logger.Logger) IdentityService {
	return &identityService{
		repo:    repo,
		gateway: gateway,
		locks:   newUserLocks(),
		log:     log,
	}
}

// ResolveOrCreateCustomer возвращает billing-клиента пользователя
func (s *identityService) ResolveOrCreateCustomer(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingIdentifier
	}

	// Конкурентные вызовы для одного пользователя сериализуются, чтобы
	// у провайдера создавался ровно один клиент; write-once CAS ниже
	// остается защитой для нескольких экземпляров сервиса
	unlock := s.locks.Lock(userID)
	defer unlock()

	// Уже привязанный клиент возвращается без обращения к провайдеру
	record, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", domain.NewStoreError("ResolveOrCreateCustomer", userID, err)
	}
	if record.BillingCustomerID != "" {
		return record.BillingCustomerID, nil
	}

	// Тег user_id в метаданных — единственный путь обратной атрибуции
	// событий, поэтому клиент всегда создается с ним
	customerID, err := s.gateway.CreateCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	// Write-once: при гонке двух вызовов проигравший получает уже
	// сохраненное значение вместо перезаписи
	effectiveID, err := s.repo.SetCustomerID(ctx, userID, customerID)
	if err != nil {
		return "", domain.NewStoreError("SetCustomerID", userID, err)
	}

	if effectiveID != customerID {
		s.log.Warnw("Lost customer assignment race, provisioned customer is orphaned",
			"userID", userID, "kept", effectiveID, "orphaned", customerID)
	}

	return effectiveID, nil
}

// CustomerToUser обратное сопоставление billing-клиента с пользователем
func (s *identityService) CustomerToUser(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", domain.ErrUnknownCustomer
	}

	record, err := s.repo.GetByCustomerID(ctx, customerID)
	if err == nil {
		return record.UserID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", domain.NewStoreError("CustomerToUser", "", err)
	}

	// Записи нет — пробуем восстановить тег из метаданных у провайдера
	userID, err := s.gateway.CustomerUserID(ctx, customerID)
	if err != nil {
		return "", err
	}

	s.log.Infow("Recovered user attribution from provider metadata",
		"stripeCustomerID", customerID, "userID", userID)
	return userID, nil
}
