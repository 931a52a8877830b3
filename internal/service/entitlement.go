package service

import (
	"context"
	"errors"

	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
)

// EntitlementService путь чтения entitlement
type EntitlementService interface {
	// IsPremium возвращает текущее premium-право пользователя.
	// Любой отказ деградирует в false: система никогда не открывается
	// в true по ошибке.
	IsPremium(ctx context.Context, userID string) bool
}

// entitlementService реализация EntitlementService
type entitlementService struct {
	repo repository.EntitlementRepository
	log  *logger.Logger
}

// NewEntitlementService создает новый сервис чтения entitlement
func NewEntitlementService(repo repository.EntitlementRepository, log *logger.Logger) EntitlementService {
	return &entitlementService{
		repo: repo,
		log:  log,
	}
}

// IsPremium возвращает premium-право пользователя
func (s *entitlementService) IsPremium(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	record, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Errorw("Entitlement lookup failed, degrading to false", "userID", userID, "error", err)
		}
		return false
	}

	return record.IsPremium
}
