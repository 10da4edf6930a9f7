package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/events"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/handler"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/notifier"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/repository"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	logger.Info("Service configuration",
		zap.String("port", cfg.Port),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("notifier_driver", cfg.NotifierDriver),
		zap.Int("low_stock_threshold", cfg.LowStockThreshold),
		zap.Bool("alert_cooldown", cfg.RedisURL != ""),
		zap.Bool("events", cfg.KafkaBrokers != ""))

	ctx := context.Background()

	// Initialize components
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	alertNotifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}
	defer closeNotifier()

	var producer events.Publisher = events.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		producer = kafkaProducer
	}
	defer producer.Close()

	signer, err := newBuildSigner(cfg.BuildSigningKey, logger)
	if err != nil {
		logger.Fatal("Failed to create build signer", zap.Error(err))
	}

	alerts := service.NewAlertDispatcher(alertNotifier, cfg.AlertTimeout, cfg.AlertConcurrency, logger)
	orderService := service.NewOrderService(store, alerts, producer, signer, cfg.LowStockThreshold, logger)
	defer orderService.Close()
	catalogService := service.NewCatalogService(store, logger)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(
		handler.NewCatalogHandler(catalogService, logger),
		handler.NewOrderHandler(orderService, logger),
		store.Driver(),
		logger,
	)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped, draining alerts")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func newBuildSigner(key string, logger *zap.Logger) (*service.BuildSigner, error) {
	if key == "" {
		logger.Warn("BUILD_SIGNING_KEY not set, order builds will not survive a restart")
		return service.NewRandomBuildSigner()
	}
	return service.NewBuildSigner([]byte(key))
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "dynamodb":
		client, err := repository.NewDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewDynamoDBStore(client, cfg.TableName), nil
	case "memory":
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// buildNotifier returns the alert transport and a cleanup func for it.
func buildNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notifier.Notifier, func(), error) {
	var (
		n       notifier.Notifier
		cleanup = func() {}
	)

	switch cfg.NotifierDriver {
	case "smtp":
		smtpNotifier, err := notifier.NewSMTPNotifier(cfg.SMTP, cfg.AlertTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		n = smtpNotifier
	case "amqp":
		conn, ch, err := notifier.SetupAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, nil, err
		}
		n = notifier.NewAMQPNotifier(ch, cfg.AMQPExchange, logger)
		cleanup = func() {
			ch.Close()
			conn.Close()
		}
	case "log":
		n = notifier.NewLogNotifier(logger)
	default:
		return nil, nil, fmt.Errorf("unknown notifier driver %q", cfg.NotifierDriver)
	}

	if cfg.RedisURL == "" {
		return n, cleanup, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, alerts will not be throttled", zap.Error(err))
	}

	throttled := notifier.NewThrottledNotifier(n, notifier.NewRedisThrottle(client, cfg.AlertCooldown), logger)
	prev := cleanup
	return throttled, func() {
		client.Close()
		prev()
	}, nil
}
