package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Entitlement-service/internal/domain"
)

func TestResolveOrCreateCustomer_CreatesOnce(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	gateway := newFakeGateway()
	identity := NewIdentityService(repo, gateway, log)

	first, err := identity.ResolveOrCreateCustomer(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Повторный вызов возвращает того же клиента без обращения к провайдеру
	second, err := identity.ResolveOrCreateCustomer(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gateway.createdCount())
}

func TestResolveOrCreateCustomer_EmptyUserID(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	identity := NewIdentityService(repo, newFakeGateway(), log)

	_, err = identity.ResolveOrCreateCustomer(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingIdentifier)
}

func TestResolveOrCreateCustomer_Concurrent(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	gateway := newFakeGateway()
	identity := NewIdentityService(repo, gateway, log)

	const callers = 8
	var wg sync.WaitGroup
	customerIDs := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			customerIDs[i], errs[i] = identity.ResolveOrCreateCustomer(context.Background(), "user-1")
		}(i)
	}
	wg.Wait()

	// У провайдера создан ровно один клиент, все вызовы видят его же
	assert.Equal(t, 1, gateway.createdCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, customerIDs[0], customerIDs[i])
	}
}

func TestCustomerToUser_LocalBindingFirst(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	_, err = repo.SetCustomerID(context.Background(), "user-1", "cus_a")
	require.NoError(t, err)

	identity := NewIdentityService(repo, newFakeGateway(), log)

	userID, err := identity.CustomerToUser(context.Background(), "cus_a")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestCustomerToUser_MetadataFallback(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	gateway := newFakeGateway()
	gateway.register("cus_remote", "user-9")

	identity := NewIdentityService(repo, gateway, log)

	userID, err := identity.CustomerToUser(context.Background(), "cus_remote")
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)
}

func TestCustomerToUser_Unknown(t *testing.T) {
	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	identity := NewIdentityService(repo, newFakeGateway(), log)

	_, err = identity.CustomerToUser(context.Background(), "cus_ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownCustomer)
}
