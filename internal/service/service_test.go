package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
)

// fakeGateway подменяет Stripe в тестах сервисного слоя
type fakeGateway struct {
	mu        sync.Mutex
	created   int
	customers map[string]string // customerID -> userID
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{customers: make(map[string]string)}
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.created++
	customerID := fmt.Sprintf("cus_%d", g.created)
	g.customers[customerID] = userID
	return customerID, nil
}

func (g *fakeGateway) CustomerUserID(ctx context.Context, customerID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	userID, ok := g.customers[customerID]
	if !ok {
		return "", domain.ErrUnknownCustomer
	}
	return userID, nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, customerID string) (string, error) {
	return "https://checkout.test/session/" + customerID, nil
}

func (g *fakeGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	return "https://portal.test/" + customerID, nil
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created
}

// register регистрирует заранее известного клиента провайдера
func (g *fakeGateway) register(customerID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[customerID] = userID
}

// testLogger тихий логгер для тестов
func testLogger() *logger.Logger {
	return logger.New(logger.FATAL)
}

// newTestRepo файловый репозиторий во временном каталоге
func newTestRepo(dir string) (repository.EntitlementRepository, error) {
	return repository.NewFileEntitlementRepository(dir+"/entitlements.json", testLogger())
}
