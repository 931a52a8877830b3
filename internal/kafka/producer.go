package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/IBM/sarama"
)

// EntitlementChangedEvent сообщение об изменении entitlement для Kafka
type EntitlementChangedEvent struct {
	UserID                string     `json:"user_id"`
	IsPremium             bool       `json:"is_premium"`
	BillingSubscriptionID string     `json:"billing_subscription_id,omitempty"`
	LastPaidAt            *time.Time `json:"last_paid_at,omitempty"`
	ChangedAt             time.Time  `json:"changed_at"`
}

// EntitlementProducer интерфейс для отправки уведомлений об изменениях
type EntitlementProducer interface {
	PublishEntitlementChanged(ctx context.Context, record domain.Entitlement) error
	Close() error
}

type kafkaEntitlementProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewEntitlementProducer создает новый продюсер уведомлений entitlement
func NewEntitlementProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) EntitlementProducer {
	return &kafkaEntitlementProducer{
		producer: producer,
		topic:    topic,
		log:      log,
	}
}

// PublishEntitlementChanged публикует уведомление об изменении entitlement.
// Ключ сообщения — userID: все события одного пользователя попадают в одну
// партицию и сохраняют порядок для консьюмера.
func (p *kafkaEntitlementProducer) PublishEntitlementChanged(ctx context.Context, record domain.Entitlement) error {
	event := EntitlementChangedEvent{
		UserID:                record.UserID,
		IsPremium:             record.IsPremium,
		BillingSubscriptionID: record.BillingSubscriptionID,
		LastPaidAt:            record.LastPaidAt,
		ChangedAt:             record.UpdatedAt,
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.log.Errorw("Failed to marshal entitlement change for Kafka", "error", err, "userID", record.UserID)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(record.UserID),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.log.Errorw("Failed to publish entitlement change to Kafka", "error", err, "userID", record.UserID, "topic", p.topic)
		return fmt.Errorf("kafka: failed to send message: %w", err)
	}

	p.log.Debugw("Published entitlement change",
		"topic", p.topic, "userID", record.UserID, "partition", partition, "offset", offset)
	return nil
}

// Close закрывает продюсер Kafka
func (p *kafkaEntitlementProducer) Close() error {
	return p.producer.Close()
}
