package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/api"
	"github.com/sanosuguru/go-campus-reservation/internal/api/handler"
	"github.com/sanosuguru/go-campus-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-campus-reservation/internal/application"
	"github.com/sanosuguru/go-campus-reservation/internal/config"
	kafkainfra "github.com/sanosuguru/go-campus-reservation/internal/infrastructure/kafka"
	"github.com/sanosuguru/go-campus-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-campus-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/breaker"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campus-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-campus-reservation/internal/worker"
)

func main() {
	// .env はローカル開発用。存在しなくてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定エラー: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.App.Env, cfg.App.LogLevel, cfg.App.ServiceName)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("起動に失敗しました", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	m := metrics.New()

	// データベース
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		return err
	}

	// Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := redisinfra.Connect(ctx, &cfg.Redis)
	cancel()
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Kafka
	writer := kafkainfra.NewWriter(&cfg.Kafka)
	producer := kafkainfra.NewProducer(writer, cfg.Kafka.EventsTopic,
		breaker.New("kafka-producer", breakerSettings(cfg.Breaker), m),
		cfg.Kafka.WriteTimeout,
	)
	defer producer.Close()
	// リーダーは Consumer.Run の終了時に閉じられる
	reader := kafkainfra.NewReader(&cfg.Kafka)

	// リポジトリとサービス
	txManager := postgres.NewTxManager(db)
	resourceRepo := postgres.NewResourceRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	outbox := postgres.NewOutboxStore(db)
	cache := redisinfra.NewAvailabilityCache(redisClient)
	lockManager := redisinfra.NewLockManager(redisClient, m)

	controller := application.NewConcurrencyController(application.RetryConfig{
		MaxAttempts: cfg.Reservation.MaxAttempts,
		Backoff:     cfg.Reservation.Backoff,
		Jitter:      cfg.Reservation.Jitter,
		Timeout:     cfg.Reservation.RetryTimeout,
	}, m)
	resourceService := application.NewResourceService(resourceRepo, cache, cfg.Reservation.CacheTTL)
	reservationService := application.NewReservationService(
		txManager, resourceRepo, reservationRepo, outbox, controller, cache, m,
	)
	compensation := application.NewCompensationHandler(reservationService, m)

	// バックグラウンド処理
	relayID := cfg.Outbox.RelayID
	if relayID == "" {
		relayID = hostname() + "-" + uuid.NewString()[:8]
	}
	relay := worker.NewOutboxRelay(outbox, producer, worker.RelayConfig{
		RelayID:      relayID,
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		Lease:        cfg.Outbox.Lease,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}, m)
	sweeper := worker.NewCompletionSweeper(reservationService,
		func(ctx context.Context, key string, ttl time.Duration) (worker.Lock, error) {
			l, err := lockManager.AcquireLock(ctx, key, ttl)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
		cfg.Worker.CompletionInterval, cfg.Worker.CompletionBatch, cfg.Worker.LockTTL,
	)
	consumer := kafkainfra.NewConsumer(reader, compensation, cfg.Kafka.ConsumerRetry, cfg.Kafka.ConsumerMax)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); relay.Start(bgCtx) }()
	go func() { defer wg.Done(); sweeper.Start(bgCtx) }()
	go func() {
		defer wg.Done()
		if err := consumer.Run(bgCtx); err != nil {
			logger.Error("補償イベントの購読が停止しました", zap.Error(err))
		}
	}()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, m)

	handler.RegisterRoutes(e, handler.Handlers{
		Health: handler.NewHealthHandler(
			handler.Dependency{Name: "postgres", Ping: func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
			handler.Dependency{Name: "redis", Ping: func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }},
		),
		Resource:    handler.NewResourceHandler(resourceService, reservationService),
		Reservation: handler.NewReservationHandler(reservationService),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port), zap.String("relay_id", relayID))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	// 受付を止めてからワーカーを止める
	stopBackground()
	wg.Wait()

	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

// 0 の項目は既定値のまま使う
func breakerSettings(c config.BreakerConfig) breaker.Settings {
	s := breaker.DefaultSettings()
	if c.MaxRequests > 0 {
		s.MaxRequests = c.MaxRequests
	}
	if c.Interval > 0 {
		s.Interval = c.Interval
	}
	if c.Timeout > 0 {
		s.Timeout = c.Timeout
	}
	if c.MinRequests > 0 {
		s.MinRequests = c.MinRequests
	}
	if c.FailureRatio > 0 {
		s.FailureRatio = c.FailureRatio
	}
	return s
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "relay"
	}
	return h
}
