package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключ метаданных, связывающий Stripe Customer с внутренним userID.
	// Это единственный механизм обратной атрибуции входящих событий:
	// payload провайдера несет customer ID, а не userID.
	metadataUserIDKey = "user_id"
)

// Config конфигурация для клиента Stripe
type Config struct {
	APIKey          string
	WebhookSecret   string
	PriceID         string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

// Gateway определяет методы для взаимодействия со Stripe API
type Gateway interface {
	// CreateCustomer создает нового клиента в Stripe с тегом userID в метаданных
	CreateCustomer(ctx context.Context, userID string) (string, error)

	// CustomerUserID возвращает userID из метаданных клиента Stripe.
	// Возвращает domain.ErrUnknownCustomer, если тег восстановить нельзя.
	CustomerUserID(ctx context.Context, customerID string) (string, error)

	// CreateCheckoutSession создает checkout-сессию подписки и возвращает redirect URL
	CreateCheckoutSession(ctx context.Context, customerID string) (string, error)

	// CreatePortalSession создает сессию billing-портала и возвращает его URL
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// stripeGateway реализует интерфейс Gateway поверх Stripe SDK
type stripeGateway struct {
	client *client.API
	cfg    Config
	log    *logger.Logger
}

// NewGateway создает новый экземпляр клиента Stripe
func NewGateway(cfg Config, log *logger.Logger) Gateway {
	sc := &client.API{}
	sc.Init(cfg.APIKey, nil)
	return &stripeGateway{
		client: sc,
		cfg:    cfg,
		log:    log,
	}
}

// CreateCustomer создает нового клиента в Stripe
func (g *stripeGateway) CreateCustomer(ctx context.Context, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			metadataUserIDKey: userID,
		},
		Params: stripe.Params{
			// Идемпотентный ключ защищает от двойного создания при ретраях
			IdempotencyKey: stripe.String(uuid.NewString()),
			Context:        ctx,
		},
	}

	cus, err := g.client.Customers.New(params)
	if err != nil {
		logStripeError(g.log, "CreateCustomer", err)
		return "", domain.NewExternalServiceError("stripe", "CreateCustomer", err)
	}

	g.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// CustomerUserID возвращает userID из метаданных клиента Stripe
func (g *stripeGateway) CustomerUserID(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	}

	cus, err := g.client.Customers.Get(customerID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return "", domain.ErrUnknownCustomer
		}
		logStripeError(g.log, "CustomerUserID", err)
		return "", domain.NewExternalServiceError("stripe", "CustomerUserID", err)
	}

	if cus.Deleted {
		return "", domain.ErrUnknownCustomer
	}

	userID, ok := cus.Metadata[metadataUserIDKey]
	if !ok || userID == "" {
		g.log.Warnw("Stripe customer has no user_id tag", "stripeCustomerID", customerID)
		return "", domain.ErrUnknownCustomer
	}

	return userID, nil
}

// CreateCheckoutSession создает checkout-сессию подписки для клиента
func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
		Params: stripe.Params{
			Context: ctx,
		},
	}

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(g.log, "CreateCheckoutSession", err)
		return "", domain.NewExternalServiceError("stripe", "CreateCheckoutSession", err)
	}

	g.log.Infow("Stripe checkout session created", "sessionID", session.ID, "stripeCustomerID", customerID)
	return session.URL, nil
}

// CreatePortalSession создает сессию billing-портала для клиента
func (g *stripeGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.cfg.PortalReturnURL),
		Params: stripe.Params{
			Context: ctx,
		},
	}

	portal, err := g.client.BillingPortalSessions.New(params)
	if err != nil {
		logStripeError(g.log, "CreatePortalSession", err)
		return "", domain.NewExternalServiceError("stripe", "CreatePortalSession", err)
	}

	g.log.Infow("Stripe billing portal session created", "stripeCustomerID", customerID)
	return portal.URL, nil
}

// logStripeError вспомогательная функция для логирования деталей ошибки Stripe
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", fmt.Sprintf("%v", err),
		)
	}
}
