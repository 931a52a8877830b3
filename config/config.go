package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Бэкенды хранилища записей entitlement
const (
	StorageBackendFile     = "file"
	StorageBackendPostgres = "postgres"
)

// Config структура конфигурации приложения
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Stripe   StripeConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// StorageConfig выбор бэкенда хранилища entitlement-записей
type StorageConfig struct {
	Backend  string // file | postgres
	FilePath string // путь к JSON-файлу для file-бэкенда
	// DefaultUserID используется entitlement-запросом без user_id
	// (single-tenant деплой, как у десктопного клиента)
	DefaultUserID string
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig конфигурация Redis для журнала применённых событий
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// RetentionHours сколько часов помним ID применённых событий;
	// должно покрывать окно повторной доставки Stripe (до 3 дней)
	RetentionHours int
}

// KafkaConfig конфигурация Kafka-продюсера уведомлений
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level string
}

// StripeConfig конфигурация Stripe
type StripeConfig struct {
	APIKey          string
	WebhookSecret   string
	PriceID         string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", StorageBackendFile),
			FilePath:      getEnv("STORAGE_FILE_PATH", "data/entitlements.json"),
			DefaultUserID: getEnv("DEFAULT_USER_ID", "default"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "entitlement_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", false),
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			RetentionHours: getEnvAsInt("EVENT_LOG_RETENTION_HOURS", 72),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "entitlement.changed"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			APIKey:          getEnv("STRIPE_API_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:         getEnv("STRIPE_PRICE_ID", ""),
			SuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:8080/success.html"),
			CancelURL:       getEnv("CHECKOUT_CANCEL_URL", "http://localhost:8080/cancel.html"),
			PortalReturnURL: getEnv("PORTAL_RETURN_URL", "http://localhost:8080"),
		},
	}

	if cfg.Storage.Backend != StorageBackendFile && cfg.Storage.Backend != StorageBackendPostgres {
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	return cfg, nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsSlice получает значение переменной окружения как список через запятую
func getEnvAsSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
