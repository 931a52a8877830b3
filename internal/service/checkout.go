package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/integration/stripe"
	"github.com/Dhoini/Entitlement-service/internal/metrics"
	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// CheckoutService синхронный путь инициации покупки и доступа к порталу
type CheckoutService interface {
	// StartCheckout гарантирует наличие billing-клиента для пользователя
	// и создает checkout-сессию; возвращает redirect URL
	StartCheckout(ctx context.Context, userID string) (string, error)

	// PortalURL возвращает URL billing-портала; требует уже привязанного
	// billing-клиента, иначе domain.ErrNoBillingAccount
	PortalURL(ctx context.Context, userID string) (string, error)
}

// checkoutService реализация CheckoutService
type checkoutService struct {
	identity IdentityService
	gateway  stripe.Gateway
	repo     repository.EntitlementRepository
	metrics  metrics.WebhookMetrics
	log      *logger.Logger
}

// NewCheckoutService создает новый сервис инициации покупки
func NewCheckoutService(
	identity IdentityService,
	gateway stripe.Gateway,
	repo repository.EntitlementRepository,
	webhookMetrics metrics.WebhookMetrics,
	log *logger.Logger,
) CheckoutService {
	return &checkoutService{
		identity: identity,
		gateway:  gateway,
		repo:     repo,
		metrics:  webhookMetrics,
		log:      log,
	}
}

// newStripeBackoff политика повторов для вызовов Stripe: короткая
// экспоненциальная пауза, не дольше таймаута запроса
func newStripeBackoff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx)
}

// StartCheckout создает checkout-сессию для пользователя
func (s *checkoutService) StartCheckout(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingIdentifier
	}

	customerID, err := s.identity.ResolveOrCreateCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	// Временные отказы Stripe повторяем; ошибки валидации — нет
	var redirectURL string
	operation := func() error {
		url, err := s.gateway.CreateCheckoutSession(ctx, customerID)
		if err != nil {
			if errors.Is(err, domain.ErrExternalServiceUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		redirectURL = url
		return nil
	}

	if err := backoff.Retry(operation, newStripeBackoff(ctx)); err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.IncCheckoutSession()
	}

	s.log.Infow("Checkout session started", "userID", userID, "stripeCustomerID", customerID)
	return redirectURL, nil
}

// PortalURL возвращает URL billing-портала пользователя
func (s *checkoutService) PortalURL(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrMissingIdentifier
	}

	record, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrNoBillingAccount
		}
		return "", domain.NewStoreError("PortalURL", userID, err)
	}

	if record.BillingCustomerID == "" {
		return "", domain.ErrNoBillingAccount
	}

	return s.gateway.CreatePortalSession(ctx, record.BillingCustomerID)
}
