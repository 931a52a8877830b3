package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/repository"
)

type reconcilerFixture struct {
	reconciler Reconciler
	repo       repository.EntitlementRepository
	gateway    *fakeGateway
	notifier   *recordingNotifier
}

// recordingNotifier собирает опубликованные уведомления
type recordingNotifier struct {
	mu      sync.Mutex
	records []domain.Entitlement
	err     error
}

func (n *recordingNotifier) PublishEntitlementChanged(ctx context.Context, record domain.Entitlement) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.records = append(n.records, record)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	log := testLogger()
	repo, err := newTestRepo(t.TempDir())
	require.NoError(t, err)

	gateway := newFakeGateway()
	notifier := &recordingNotifier{}
	identity := NewIdentityService(repo, gateway, log)
	reconciler := NewReconciler(repo, repository.NewInMemoryEventLog(), identity, notifier, nil, log)

	return &reconcilerFixture{
		reconciler: reconciler,
		repo:       repo,
		gateway:    gateway,
		notifier:   notifier,
	}
}

// bind привязывает пользователя к billing-клиенту напрямую через хранилище
func (f *reconcilerFixture) bind(t *testing.T, userID, customerID string) {
	t.Helper()
	effective, err := f.repo.SetCustomerID(context.Background(), userID, customerID)
	require.NoError(t, err)
	require.Equal(t, customerID, effective)
}

func paidAt(ts int64) *time.Time {
	v := time.Unix(ts, 0).UTC()
	return &v
}

func activateIntent(customerID string, occurredAt int64) domain.Intent {
	return domain.Intent{
		Kind:           domain.IntentActivate,
		CustomerID:     customerID,
		SubscriptionID: "sub_1",
		PaidAt:         paidAt(occurredAt),
		OccurredAt:     occurredAt,
	}
}

func deactivateIntent(customerID string, occurredAt int64) domain.Intent {
	return domain.Intent{
		Kind:       domain.IntentDeactivate,
		CustomerID: customerID,
		OccurredAt: occurredAt,
	}
}

func TestReconcilerApply_Activate(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")

	result, err := f.reconciler.Apply(context.Background(), "evt_1", activateIntent("cus_a", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyApplied, result)

	record, err := f.repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, record.IsPremium)
	assert.Equal(t, "cus_a", record.BillingCustomerID)
	assert.Equal(t, "sub_1", record.BillingSubscriptionID)
	assert.Equal(t, int64(100), record.LastEventAt)
	require.NotNil(t, record.LastPaidAt)
	assert.Equal(t, int64(100), record.LastPaidAt.Unix())
	assert.Equal(t, 1, f.notifier.count())
}

func TestReconcilerApply_DuplicateDelivery(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")

	intent := activateIntent("cus_a", 100)

	result, err := f.reconciler.Apply(context.Background(), "evt_1", intent)
	require.NoError(t, err)
	require.Equal(t, domain.ApplyApplied, result)

	// Повторная доставка того же события не меняет запись и не
	// публикует второе уведомление
	result, err = f.reconciler.Apply(context.Background(), "evt_1", intent)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyDuplicate, result)
	assert.Equal(t, 1, f.notifier.count())
}

func TestReconcilerApply_StaleEventRejected(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")

	// Отмена со штампом 100 доставлена раньше продления со штампом 50
	result, err := f.reconciler.Apply(context.Background(), "evt_1", deactivateIntent("cus_a", 100))
	require.NoError(t, err)
	require.Equal(t, domain.ApplyApplied, result)

	result, err = f.reconciler.Apply(context.Background(), "evt_2", domain.Intent{
		Kind:           domain.IntentRenew,
		CustomerID:     "cus_a",
		SubscriptionID: "sub_1",
		PaidAt:         paidAt(50),
		OccurredAt:     50,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyRejectedStale, result)

	record, err := f.repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, record.IsPremium)
	assert.Equal(t, int64(100), record.LastEventAt)
}

func TestReconcilerApply_EqualTimestampApplies(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")

	result, err := f.reconciler.Apply(context.Background(), "evt_1", activateIntent("cus_a", 100))
	require.NoError(t, err)
	require.Equal(t, domain.ApplyApplied, result)

	result, err = f.reconciler.Apply(context.Background(), "evt_2", deactivateIntent("cus_a", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyApplied, result)

	record, err := f.repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, record.IsPremium)
}

func TestReconcilerApply_UnknownCustomerDropped(t *testing.T) {
	f := newReconcilerFixture(t)

	result, err := f.reconciler.Apply(context.Background(), "evt_1", activateIntent("cus_ghost", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyDroppedUnknownCustomer, result)
	assert.Equal(t, 0, f.notifier.count())
}

func TestReconcilerApply_AttributionViaProviderMetadata(t *testing.T) {
	f := newReconcilerFixture(t)

	// Клиент ещё не привязан локально, но несёт метаданные у провайдера
	f.gateway.register("cus_meta", "user-7")

	result, err := f.reconciler.Apply(context.Background(), "evt_1", activateIntent("cus_meta", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyApplied, result)

	record, err := f.repo.GetByUserID(context.Background(), "user-7")
	require.NoError(t, err)
	assert.True(t, record.IsPremium)
}

func TestReconcilerApply_DeactivateKeepsCustomerBinding(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")

	_, err := f.reconciler.Apply(context.Background(), "evt_1", activateIntent("cus_a", 100))
	require.NoError(t, err)

	result, err := f.reconciler.Apply(context.Background(), "evt_2", deactivateIntent("cus_a", 200))
	require.NoError(t, err)
	require.Equal(t, domain.ApplyApplied, result)

	record, err := f.repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, record.IsPremium)
	assert.Empty(t, record.BillingSubscriptionID)
	// Привязка к billing-клиенту переживает отмену подписки
	assert.Equal(t, "cus_a", record.BillingCustomerID)
}

// Итоговое состояние не зависит от порядка доставки событий
func TestReconcilerApply_DeliveryOrderPermutations(t *testing.T) {
	type delivery struct {
		eventID string
		intent  domain.Intent
	}

	deliveries := []delivery{
		{"evt_activate", activateIntent("cus_a", 100)},
		{"evt_renew", domain.Intent{
			Kind:           domain.IntentRenew,
			CustomerID:     "cus_a",
			SubscriptionID: "sub_1",
			PaidAt:         paidAt(200),
			OccurredAt:     200,
		}},
		{"evt_cancel", deactivateIntent("cus_a", 300)},
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	for _, order := range permutations {
		t.Run(fmt.Sprintf("order_%v", order), func(t *testing.T) {
			f := newReconcilerFixture(t)
			f.bind(t, "user-1", "cus_a")

			for _, i := range order {
				_, err := f.reconciler.Apply(context.Background(), deliveries[i].eventID, deliveries[i].intent)
				require.NoError(t, err)
			}

			record, err := f.repo.GetByUserID(context.Background(), "user-1")
			require.NoError(t, err)
			assert.False(t, record.IsPremium, "последнее по штампу событие — отмена")
			assert.Equal(t, int64(300), record.LastEventAt)
			assert.Equal(t, "cus_a", record.BillingCustomerID)
		})
	}
}

func TestReconcilerApply_ConcurrentSameUser(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")

	const workers = 16
	var wg sync.WaitGroup
	results := make([]domain.ApplyResult, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eventID := fmt.Sprintf("evt_%d", i)
			results[i], errs[i] = f.reconciler.Apply(context.Background(), eventID, activateIntent("cus_a", int64(100+i)))
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i] == domain.ApplyApplied {
			applied++
		}
	}
	// Все события уникальны; устареть может только пришедшее позже
	// события с большим штампом — итоговый штамп всегда максимальный
	assert.Positive(t, applied)

	record, err := f.repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, record.IsPremium)
	assert.Equal(t, int64(100+workers-1), record.LastEventAt)
}

func TestReconcilerApply_NotifierFailureDoesNotFailApply(t *testing.T) {
	f := newReconcilerFixture(t)
	f.bind(t, "user-1", "cus_a")
	f.notifier.err = fmt.Errorf("broker down")

	result, err := f.reconciler.Apply(context.Background(), "evt_1", activateIntent("cus_a", 100))
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyApplied, result)
}
