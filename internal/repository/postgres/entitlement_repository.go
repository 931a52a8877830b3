package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Схема таблицы (migrations/001_entitlements.sql):
//
//	CREATE TABLE IF NOT EXISTS entitlements (
//	    user_id                 TEXT PRIMARY KEY,
//	    billing_customer_id     TEXT UNIQUE,
//	    billing_subscription_id TEXT,
//	    is_premium              BOOLEAN NOT NULL DEFAULT FALSE,
//	    last_paid_at            TIMESTAMPTZ,
//	    last_event_at           BIGINT NOT NULL DEFAULT 0,
//	    created_at              TIMESTAMPTZ NOT NULL,
//	    updated_at              TIMESTAMPTZ NOT NULL
//	);

// PostgresEntitlementRepository реализация хранилища entitlement через PostgreSQL.
// Атомарность read-modify-write обеспечивается транзакцией c SELECT ... FOR UPDATE.
type PostgresEntitlementRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresEntitlementRepository создает новый репозиторий entitlement через PostgreSQL
func NewPostgresEntitlementRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresEntitlementRepository {
	return &PostgresEntitlementRepository{
		db:  db,
		log: log,
	}
}

const selectColumns = `user_id, billing_customer_id, billing_subscription_id, is_premium, last_paid_at, last_event_at, created_at, updated_at`

// scanEntitlement считывает одну строку в доменную запись
func scanEntitlement(row pgx.Row) (domain.Entitlement, error) {
	var e domain.Entitlement
	var customerID, subscriptionID *string

	err := row.Scan(
		&e.UserID,
		&customerID,
		&subscriptionID,
		&e.IsPremium,
		&e.LastPaidAt,
		&e.LastEventAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return domain.Entitlement{}, err
	}

	if customerID != nil {
		e.BillingCustomerID = *customerID
	}
	if subscriptionID != nil {
		e.BillingSubscriptionID = *subscriptionID
	}

	return e, nil
}

// nullable преобразует пустую строку в NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetByUserID возвращает запись пользователя
func (r *PostgresEntitlementRepository) GetByUserID(ctx context.Context, userID string) (domain.Entitlement, error) {
	query := `SELECT ` + selectColumns + ` FROM entitlements WHERE user_id = $1`

	e, err := scanEntitlement(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entitlement{}, repository.ErrNotFound
		}
		return domain.Entitlement{}, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return e, nil
}

// GetByCustomerID возвращает запись по billing-клиенту
func (r *PostgresEntitlementRepository) GetByCustomerID(ctx context.Context, customerID string) (domain.Entitlement, error) {
	query := `SELECT ` + selectColumns + ` FROM entitlements WHERE billing_customer_id = $1`

	e, err := scanEntitlement(r.db.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entitlement{}, repository.ErrNotFound
		}
		return domain.Entitlement{}, fmt.Errorf("failed to get entitlement by customer: %w", err)
	}

	return e, nil
}

// ensureRow создает запись с IsPremium=false, если её еще нет; выполняется внутри транзакции
func (r *PostgresEntitlementRepository) ensureRow(ctx context.Context, tx pgx.Tx, userID string) error {
	query := `
		INSERT INTO entitlements (user_id, is_premium, last_event_at, created_at, updated_at)
		VALUES ($1, FALSE, 0, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to ensure entitlement row: %w", err)
	}

	return nil
}

// Update атомарный read-modify-write одной записи под блокировкой строки
func (r *PostgresEntitlementRepository) Update(ctx context.Context, userID string, mutate func(*domain.Entitlement) error) (domain.Entitlement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Entitlement{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.ensureRow(ctx, tx, userID); err != nil {
		return domain.Entitlement{}, err
	}

	query := `SELECT ` + selectColumns + ` FROM entitlements WHERE user_id = $1 FOR UPDATE`
	record, err := scanEntitlement(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.Entitlement{}, fmt.Errorf("failed to lock entitlement row: %w", err)
	}

	if err := mutate(&record); err != nil {
		return domain.Entitlement{}, err
	}

	record.UpdatedAt = time.Now().UTC()

	updateQuery := `
		UPDATE entitlements
		SET billing_customer_id = $2,
		    billing_subscription_id = $3,
		    is_premium = $4,
		    last_paid_at = $5,
		    last_event_at = $6,
		    updated_at = $7
		WHERE user_id = $1
	`

	_, err = tx.Exec(ctx, updateQuery,
		record.UserID,
		nullable(record.BillingCustomerID),
		nullable(record.BillingSubscriptionID),
		record.IsPremium,
		record.LastPaidAt,
		record.LastEventAt,
		record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Уникальность billing_customer_id нарушена гонкой назначения
			return domain.Entitlement{}, repository.ErrCustomerAlreadySet
		}
		return domain.Entitlement{}, fmt.Errorf("failed to update entitlement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Entitlement{}, fmt.Errorf("failed to commit entitlement update: %w", err)
	}

	return record, nil
}

// SetCustomerID write-once привязка billing-клиента: проигравший гонку
// получает уже сохраненное значение
func (r *PostgresEntitlementRepository) SetCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	record, err := r.Update(ctx, userID, func(e *domain.Entitlement) error {
		if e.BillingCustomerID == "" {
			e.BillingCustomerID = customerID
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if record.BillingCustomerID != customerID {
		r.log.Warnw("Billing customer already assigned, keeping existing",
			"userID", userID, "existing", record.BillingCustomerID, "attempted", customerID)
	}

	return record.BillingCustomerID, nil
}
