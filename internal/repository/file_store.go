package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
)

// FileEntitlementRepository хранит записи в одном JSON-файле.
// Подходит для single-tenant деплоя; все операции сериализуются через
// мьютекс процесса, так что read-modify-write одной записи атомарен.
// Запись на диск идёт через временный файл и rename.
type FileEntitlementRepository struct {
	path string
	mu   sync.Mutex
	log  *logger.Logger
}

// NewFileEntitlementRepository создает файловый репозиторий и каталог для него
func NewFileEntitlementRepository(path string, log *logger.Logger) (*FileEntitlementRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	r := &FileEntitlementRepository{
		path: path,
		log:  log,
	}

	// Создаем пустой файл при первом запуске
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.writeAll(map[string]domain.Entitlement{}); err != nil {
			return nil, err
		}
		log.Infow("Created entitlement storage file", "path", path)
	}

	return r, nil
}

// readAll читает все записи из файла; вызывается под мьютексом
func (r *FileEntitlementRepository) readAll() (map[string]domain.Entitlement, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	records := make(map[string]domain.Entitlement)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse storage file: %w", err)
		}
	}

	return records, nil
}

// writeAll записывает все записи в файл через rename; вызывается под мьютексом
func (r *FileEntitlementRepository) writeAll(records map[string]domain.Entitlement) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}

	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}

	return nil
}

// GetByUserID возвращает запись пользователя
func (r *FileEntitlementRepository) GetByUserID(ctx context.Context, userID string) (domain.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return domain.Entitlement{}, err
	}

	record, exists := records[userID]
	if !exists {
		return domain.Entitlement{}, ErrNotFound
	}

	return record, nil
}

// GetByCustomerID возвращает запись по billing-клиенту
func (r *FileEntitlementRepository) GetByCustomerID(ctx context.Context, customerID string) (domain.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return domain.Entitlement{}, err
	}

	for _, record := range records {
		if record.BillingCustomerID == customerID {
			return record, nil
		}
	}

	return domain.Entitlement{}, ErrNotFound
}

// Update атомарный read-modify-write одной записи
func (r *FileEntitlementRepository) Update(ctx context.Context, userID string, mutate func(*domain.Entitlement) error) (domain.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readAll()
	if err != nil {
		return domain.Entitlement{}, err
	}

	record, exists := records[userID]
	if !exists {
		record = domain.Entitlement{
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		}
	}

	if err := mutate(&record); err != nil {
		return domain.Entitlement{}, err
	}

	record.UpdatedAt = time.Now().UTC()
	records[userID] = record

	if err := r.writeAll(records); err != nil {
		return domain.Entitlement{}, err
	}

	return record, nil
}

// SetCustomerID write-once привязка billing-клиента к пользователю
func (r *FileEntitlementRepository) SetCustomerID(ctx context.Context, userID, customerID string) (string, error) {
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
