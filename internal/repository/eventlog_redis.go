package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префикс ключей журнала применённых событий
	appliedEventKeyPrefix = "applied_event:"
)

// RedisEventLog журнал применённых событий в Redis.
// TTL ключей должен покрывать окно повторной доставки провайдера,
// после него запись о событии может быть забыта без риска.
type RedisEventLog struct {
	client    *redis.Client
	retention time.Duration
	log       *logger.Logger
}

// NewRedisEventLog создает журнал событий в Redis и проверяет соединение
func NewRedisEventLog(redisAddr, redisPassword string, redisDB int, retention time.Duration, log *logger.Logger) (*RedisEventLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisEventLog{
		client:    client,
		retention: retention,
		log:       log,
	}, nil
}

// Close закрывает соединение с Redis
func (l *RedisEventLog) Close() error {
	return l.client.Close()
}

// Seen проверяет, применялось ли событие ранее
func (l *RedisEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	key := appliedEventKeyPrefix + eventID

	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		l.log.Errorw("Failed to check applied event in Redis", "error", err, "eventID", eventID)
		return false, fmt.Errorf("failed to check applied event: %w", err)
	}

	return n > 0, nil
}

// Record фиксирует событие как применённое c TTL окна повторной доставки
func (l *RedisEventLog) Record(ctx context.Context, eventID string) error {
	key := appliedEventKeyPrefix + eventID

	if err := l.client.Set(ctx, key, 1, l.retention).Err(); err != nil {
		l.log.Errorw("Failed to record applied event in Redis", "error", err, "eventID", eventID)
		return fmt.Errorf("failed to record applied event: %w", err)
	}

	l.log.Debugw("Applied event recorded", "eventID", eventID)
	return nil
}
