package main

import (
	"context"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/creator-settlement/internal/cache"
	"github.com/ignatzorin/creator-settlement/internal/config"
	"github.com/ignatzorin/creator-settlement/internal/db"
	"github.com/ignatzorin/creator-settlement/internal/events"
	"github.com/ignatzorin/creator-settlement/internal/gateway"
	"github.com/ignatzorin/creator-settlement/internal/goroutine"
	httpHandlers "github.com/ignatzorin/creator-settlement/internal/http/handlers"
	"github.com/ignatzorin/creator-settlement/internal/http/middleware"
	httpRouter "github.com/ignatzorin/creator-settlement/internal/http/router"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/repository"
	"github.com/ignatzorin/creator-settlement/internal/secure"
	"github.com/ignatzorin/creator-settlement/internal/service"
	"github.com/ignatzorin/creator-settlement/internal/storage"
	"github.com/ignatzorin/creator-settlement/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPool)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose("postgres", dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}
	store := repository.NewPostgresStore(dbConn)

	// Платёжный шлюз.
	var provider gateway.Provider
	switch cfg.Payments.Provider {
	case "stripe":
		provider = gateway.NewStripeProvider(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookSecret)
	default:
		provider = gateway.NewMockProvider(cfg.Payments.MockWebhookSecret)
	}
	logger.Log.WithField("provider", provider.Name()).Info("main: платёжный шлюз выбран")

	sealer, err := secure.NewSealer(cfg.Withdrawal.BankDetailsKey)
	if err != nil {
		logger.Log.Fatalf("main: ключ шифрования реквизитов: %v", err)
	}

	// Хранилище чеков и подпись ссылок на видео.
	var (
		receipts     storage.Storage
		receiptFiles *httpHandlers.ReceiptFiles
		signer       storage.URLSigner = storage.PassthroughSigner{}
	)
	var s3Store *storage.S3
	if cfg.Storage.S3Bucket != "" {
		s3Store, err = storage.NewS3(ctx, storage.S3Config{
			Region:        cfg.Storage.S3Region,
			Bucket:        cfg.Storage.S3Bucket,
			Prefix:        cfg.Storage.S3Prefix,
			PublicBaseURL: cfg.Storage.S3PublicBaseURL,
			URLTTL:        cfg.Storage.AssetURLTTL,
		})
		if err != nil {
			logger.Log.Fatalf("main: не удалось подготовить s3: %v", err)
		}
		signer = s3Store
	}
	if cfg.Storage.Receipts == "s3" {
		receipts = s3Store
	} else {
		local, err := storage.NewLocal(cfg.Storage.LocalPath, "/api/receipts", cfg.Storage.MaxUploadSizeMB)
		if err != nil {
			logger.Log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
		}
		receipts = local
		receiptFiles = httpHandlers.NewReceiptFiles(local.Root())
	}

	// Redis нужен только для общего лимитера между инстансами.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("main: redis: %v", err)
		}
		defer safeClose("redis", redisClient)
	}
	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		logger.Log.Fatalf("main: хранилище лимитера: %v", err)
	}

	// События: kafka, если настроена, иначе только лог.
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Log.Fatalf("main: kafka: %v", err)
		}
		publisher = kp
	}
	defer safeClose("publisher", publisher)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	goroutine.Go("ws-hub", hub.Run)

	dispatcher := events.NewDispatcher(publisher, hub)
	statusCache := service.NewCacheService()
	defer statusCache.Close()

	// Сервисы.
	timeouts := service.Timeouts{Store: cfg.StoreTimeout, Gateway: cfg.GatewayTimeout}
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	orderService := service.NewOrderService(store, dispatcher, service.OrderConfig{
		GatewayFeeRate:  cfg.Payments.GatewayFeeRate,
		DefaultCurrency: cfg.Payments.DefaultCurrency,
		StoreTimeout:    cfg.StoreTimeout,
	})
	escrowService := service.NewEscrowService(store, dispatcher, service.EscrowConfig{
		PlatformFeeRate: cfg.Payments.PlatformFeeRate,
		StoreTimeout:    cfg.StoreTimeout,
	})
	paymentService := service.NewPaymentService(store, provider, orderService, escrowService, statusCache, dispatcher, service.PaymentConfig{
		Timeouts:       timeouts,
		StatusCacheTTL: cfg.Payments.StatusCacheTTL,
	})
	webhookService := service.NewWebhookService(store, provider, orderService, escrowService, paymentService, dispatcher, cfg.StoreTimeout)
	withdrawalService := service.NewWithdrawalService(store, sealer, dispatcher, service.WithdrawalConfig{
		MinAmount:    cfg.Withdrawal.MinAmount,
		BankFee:      cfg.Withdrawal.BankFee,
		StoreTimeout: cfg.StoreTimeout,
	})
	submissionService := service.NewSubmissionService(store, escrowService, signer, dispatcher, cfg.StoreTimeout)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Orders:      httpHandlers.NewOrderHandler(orderService),
		Payments:    httpHandlers.NewPaymentHandler(paymentService, webhookService),
		Escrow:      httpHandlers.NewEscrowHandler(escrowService),
		Withdrawals: httpHandlers.NewWithdrawalHandler(withdrawalService, receipts),
		Submissions: httpHandlers.NewSubmissionHandler(submissionService),
		Health:      httpHandlers.NewHealthHandler(dbConn),
		WS:          httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Receipts:    receiptFiles,
	}, tokenManager, limiterStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	shutdownDone := make(chan struct{})
	goroutine.Go("http-shutdown", func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("main: ошибка остановки http сервера: %v", err)
		}
	})

	logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
	<-shutdownDone

	// Досылаем события до закрытия publisher.
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		logger.Log.Warnf("main: не все события отправлены до остановки: %v", err)
	}
}

// safeClose закрывает ресурс и логирует ошибку.
func safeClose(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия %s: %v", name, err)
	}
}
