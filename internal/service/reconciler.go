package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/metrics"
	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
)

// ChangeNotifier публикует уведомление об изменении entitlement.
// Публикация best-effort: её отказ не откатывает применённое намерение.
type ChangeNotifier interface {
	PublishEntitlementChanged(ctx context.Context, record domain.Entitlement) error
}

// Reconciler движок сверки: применяет нормализованные намерения к
// хранилищу с гарантиями идемпотентности и упорядочивания
type Reconciler interface {
	// Apply применяет намерение. Duplicate, RejectedStale и
	// DroppedUnknownCustomer — нормальные исходы, а не ошибки; error
	// возвращается только при отказах хранилища или журнала событий.
	Apply(ctx context.Context, eventID string, intent domain.Intent) (domain.ApplyResult, error)
}

// userLocks мьютексы по ключу пользователя.
// Блокировка делает проверку идемпотентности, проверку устаревания и
// merge одной атомарной секцией для конкретного пользователя; события
// разных пользователей друг друга не ждут.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock захватывает мьютекс пользователя и возвращает функцию освобождения
func (u *userLocks) Lock(userID string) func() {
	u.mu.Lock()
	lock, exists := u.locks[userID]
	if !exists {
		lock = &sync.Mutex{}
		u.locks[userID] = lock
	}
	u.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// reconciler реализация движка сверки
type reconciler struct {
	repo     repository.EntitlementRepository
	eventLog repository.EventLog
	identity IdentityService
	notifier ChangeNotifier
	metrics  metrics.WebhookMetrics
	locks    *userLocks
	log      *logger.Logger
}

// NewReconciler создает новый движок сверки; notifier может быть nil
func NewReconciler(
	repo repository.EntitlementRepository,
	eventLog repository.EventLog,
	identity IdentityService,
	notifier ChangeNotifier,
	webhookMetrics metrics.WebhookMetrics,
	log *logger.Logger,
) Reconciler {
	return &reconciler{
		repo:     repo,
		eventLog: eventLog,
		identity: identity,
		notifier: notifier,
		metrics:  webhookMetrics,
		locks:    newUserLocks(),
		log:      log,
	}
}

// Apply применяет нормализованное намерение к записи пользователя
func (r *reconciler) Apply(ctx context.Context, eventID string, intent domain.Intent) (domain.ApplyResult, error) {
	// 1. Атрибуция события пользователю через billing-клиента
	userID, err := r.identity.CustomerToUser(ctx, intent.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCustomer) {
			// Метаданные уже не появятся: событие логируется и
			// отбрасывается, но доставка подтверждается, чтобы
			// провайдер не повторял её бесконечно
			r.log.Warnw("Dropping event for unknown billing customer",
				"eventID", eventID, "stripeCustomerID", intent.CustomerID, "kind", string(intent.Kind))
			r.observe(domain.ApplyDroppedUnknownCustomer)
			return domain.ApplyDroppedUnknownCustomer, nil
		}
		return 0, err
	}

	unlock := r.locks.Lock(userID)
	defer unlock()

	// 2. Идемпотентность: канал доставки at-least-once
	seen, err := r.eventLog.Seen(ctx, eventID)
	if err != nil {
		return 0, domain.NewStoreError("EventLog.Seen", userID, err)
	}
	if seen {
		r.log.Debugw("Duplicate event delivery", "eventID", eventID, "userID", userID)
		r.observe(domain.ApplyDuplicate)
		return domain.ApplyDuplicate, nil
	}

	// 3-4. Отсечение устаревших событий и частичный merge одной
	// атомарной операцией над записью
	record, err := r.repo.Update(ctx, userID, func(e *domain.Entitlement) error {
		if intent.OccurredAt < e.LastEventAt {
			return domain.ErrStaleEvent
		}
		e.ApplyIntent(intent)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleEvent) {
			// Побеждает последний по штампу события, а не по времени
			// доставки: устаревший Deactivate не затирает более
			// позднюю активацию
			r.log.Infow("Rejected stale event",
				"eventID", eventID, "userID", userID, "kind", string(intent.Kind), "occurredAt", intent.OccurredAt)
			r.observe(domain.ApplyRejectedStale)
			return domain.ApplyRejectedStale, nil
		}
		return 0, domain.NewStoreError("Update", userID, err)
	}

	// Журнал пишется после merge: если процесс упадет между этими
	// шагами, повторная доставка заново выполнит merge с теми же
	// значениями — это безопасно
	if err := r.eventLog.Record(ctx, eventID); err != nil {
		return 0, domain.NewStoreError("EventLog.Record", userID, err)
	}

	r.log.Infow("Applied entitlement intent",
		"eventID", eventID, "userID", userID, "kind", string(intent.Kind), "isPremium", record.IsPremium)
	r.observe(domain.ApplyApplied)
	r.notify(ctx, record)

	return domain.ApplyApplied, nil
}

// observe учитывает исход в метриках
func (r *reconciler) observe(result domain.ApplyResult) {
	if r.metrics != nil {
		r.metrics.IncEventProcessed(result.String())
	}
}

// notify публикует уведомление об изменении; отказ не влияет на исход
func (r *reconciler) notify(ctx context.Context, record domain.Entitlement) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishEntitlementChanged(ctx, record); err != nil {
		r.log.Errorw("Failed to publish entitlement change", "userID", record.UserID, "error", err)
	}
}
