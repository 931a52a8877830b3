package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/Entitlement-service/config"
	"github.com/Dhoini/Entitlement-service/internal/api/rest"
	stripeintegration "github.com/Dhoini/Entitlement-service/internal/integration/stripe"
	"github.com/Dhoini/Entitlement-service/internal/kafka"
	"github.com/Dhoini/Entitlement-service/internal/metrics"
	"github.com/Dhoini/Entitlement-service/internal/repository"
	"github.com/Dhoini/Entitlement-service/internal/repository/postgres"
	"github.com/Dhoini/Entitlement-service/internal/service"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

var log *logger.Logger

func init() {
	// Загружаем переменные окружения
	if err := godotenv.Load(); err != nil {
		// Пропускаем ошибку, если .env файл не найден
	}

	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log = logger.New(logger.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(promRegistry, log)

	// Выбор бэкенда хранилища entitlement
	var repo repository.EntitlementRepository
	switch cfg.Storage.Backend {
	case config.StorageBackendPostgres:
		dbPool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}
		defer dbPool.Close()
		repo = postgres.NewPostgresEntitlementRepository(dbPool, log)
	default:
		fileRepo, err := repository.NewFileEntitlementRepository(cfg.Storage.FilePath, log)
		if err != nil {
			log.Fatal("Failed to initialize file storage: %v", err)
		}
		repo = fileRepo
	}
	log.Infow("Entitlement storage initialized", "backend", cfg.Storage.Backend)

	// Журнал применённых событий: Redis, либо память процесса
	var eventLog repository.EventLog
	if cfg.Redis.Enabled {
		retention := time.Duration(cfg.Redis.RetentionHours) * time.Hour
		redisLog, err := repository.NewRedisEventLog(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, retention, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		defer redisLog.Close()
		eventLog = redisLog
	} else {
		eventLog = repository.NewInMemoryEventLog()
	}

	// Клиент Stripe
	stripeGateway := stripeintegration.NewGateway(stripeintegration.Config{
		APIKey:          cfg.Stripe.APIKey,
		WebhookSecret:   cfg.Stripe.WebhookSecret,
		PriceID:         cfg.Stripe.PriceID,
		SuccessURL:      cfg.Stripe.SuccessURL,
		CancelURL:       cfg.Stripe.CancelURL,
		PortalReturnURL: cfg.Stripe.PortalReturnURL,
	}, log)
	verifier := stripeintegration.NewWebhookVerifier(cfg.Stripe.WebhookSecret, log)
	normalizer := stripeintegration.NewNormalizer(log)

	// Kafka-продюсер уведомлений (опционально)
	var notifier service.ChangeNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		saramaProducer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafka.NewSaramaConfig(log))
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
		entitlementProducer := kafka.NewEntitlementProducer(saramaProducer, cfg.Kafka.Topic, log)
		defer entitlementProducer.Close()
		notifier = entitlementProducer
		log.Infow("Kafka notifications enabled", "topic", cfg.Kafka.Topic)
	}

	// Сборка сервисов
	identity := service.NewIdentityService(repo, stripeGateway, log)
	reconciler := service.NewReconciler(repo, eventLog, identity, notifier, webhookMetrics, log)
	checkout := service.NewCheckoutService(identity, stripeGateway, repo, webhookMetrics, log)
	entitlement := service.NewEntitlementService(repo, log)

	// Установка режима Gin
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(rest.Dependencies{
		Verifier:    verifier,
		Normalizer:  normalizer,
		Reconciler:  reconciler,
		Checkout:    checkout,
		Entitlement: entitlement,
		Metrics:     webhookMetrics,
	}, cfg, promRegistry, log)

	// Создание и запуск HTTP сервера
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
