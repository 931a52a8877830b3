package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Entitlement-service/internal/domain"
)

func TestStartCheckout(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	gateway := newFakeGateway()
	identity := NewIdentityService(repo, gateway, log)
	svc := NewCheckoutService(identity, gateway, repo, nil, log)

	url, err := svc.StartCheckout(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Contains(t, url, "https://checkout.test/session/")

	// Клиент создан как побочный эффект инициации покупки
	assert.Equal(t, 1, gateway.createdCount())

	record, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, record.BillingCustomerID)

	_, err = svc.StartCheckout(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingIdentifier)
}

func TestPortalURL_RequiresBillingAccount(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	gateway := newFakeGateway()
	identity := NewIdentityService(repo, gateway, log)
	svc := NewCheckoutService(identity, gateway, repo, nil, log)

	// Без привязанного billing-клиента портал недоступен
	_, err = svc.PortalURL(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrNoBillingAccount)

	_, err = repo.SetCustomerID(context.Background(), "user-1", "cus_a")
	require.NoError(t, err)

	url, err := svc.PortalURL(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/cus_a", url)
}
