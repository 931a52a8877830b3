package repository

import (
	"context"
	"sync"
	"time"
)

// InMemoryEventLog журнал применённых событий в памяти процесса.
// Используется с файловым бэкендом и в тестах: после рестарта журнал
// пуст, но merge движка идемпотентен по значению, так что повтор
// доставки не ломает состояние.
type InMemoryEventLog struct {
	seen  map[string]time.Time
	mutex sync.RWMutex
}

// NewInMemoryEventLog создает новый журнал событий в памяти
func NewInMemoryEventLog() *InMemoryEventLog {
	return &InMemoryEventLog{
		seen: make(map[string]time.Time),
	}
}

// Seen проверяет, применялось ли событие ранее
func (l *InMemoryEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, exists := l.seen[eventID]
	return exists, nil
}

// Record фиксирует событие как применённое
func (l *InMemoryEventLog) Record(ctx context.Context, eventID string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.seen[eventID] = time.Now()
	return nil
}
