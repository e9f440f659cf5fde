package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/hostelcart/batch-engine/internal/config"
	"github.com/hostelcart/batch-engine/internal/handler"
	"github.com/hostelcart/batch-engine/internal/infra/postgresql"
	"github.com/hostelcart/batch-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/hostelcart/batch-engine/internal/infra/redis"
	"github.com/hostelcart/batch-engine/internal/observability"
	"github.com/hostelcart/batch-engine/internal/queue"
	"github.com/hostelcart/batch-engine/internal/repository"
	"github.com/hostelcart/batch-engine/internal/service"
	"github.com/hostelcart/batch-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	publisher := queue.NewRabbitMQPublisher(rmq)

	limiter, err := infraredis.NewRedisAttemptLimiter(rdb, cfg.OTPAttemptsPerMin)
	if err != nil {
		logger.Fatal("attempt limiter initialization failed", zap.Error(err))
	}

	batches := repository.NewGormBatchRepo(db)
	orders := repository.NewGormOrderRepo(db)
	shops := repository.NewGormShopRepo(db)
	notifications := repository.NewGormNotificationRepo(db)

	lifecycle, err := service.NewLifecycleService(batches, orders, shops, publisher, limiter, logger)
	if err != nil {
		logger.Fatal("lifecycle service initialization failed", zap.Error(err))
	}

	monitor, err := service.NewStaleMonitor(batches, shops, publisher, cfg.IdleThreshold(), logger)
	if err != nil {
		logger.Fatal("stale monitor initialization failed", zap.Error(err))
	}

	scheduler, err := service.NewScheduler(lifecycle, monitor, cfg.BatchTickInterval(), logger)
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	lifecycle.SetMetrics(metrics)
	monitor.SetMetrics(metrics)
	scheduler.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "batch-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterBatchRoutes(app, lifecycle); err != nil {
		logger.Fatal("batch route registration failed", zap.Error(err))
	}
	if err := handler.RegisterNotificationRoutes(app, notifications); err != nil {
		logger.Fatal("notification route registration failed", zap.Error(err))
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info("batch-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return scheduler.Start(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down api")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && rootCtx.Err() == nil {
		logger.Fatal("api terminated", zap.Error(err))
	}
}
