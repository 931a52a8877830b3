package kafka

import (
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/IBM/sarama"
)

// NewSaramaConfig создает конфигурацию Sarama для синхронного продюсера
func NewSaramaConfig(log *logger.Logger) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V3_3_0_0

	// Настройки продюсера: подтверждение от всех реплик, сжатие snappy
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	log.Debugw("Sarama producer config prepared", "version", "3.3.0", "acks", "all")
	return saramaConfig
}
