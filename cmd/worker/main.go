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
	"github.com/hostelcart/batch-engine/internal/alert"
	"github.com/hostelcart/batch-engine/internal/config"
	"github.com/hostelcart/batch-engine/internal/infra/postgresql"
	infraredis "github.com/hostelcart/batch-engine/internal/infra/redis"
	"github.com/hostelcart/batch-engine/internal/observability"
	"github.com/hostelcart/batch-engine/internal/queue"
	"github.com/hostelcart/batch-engine/internal/repository"
	"github.com/hostelcart/batch-engine/internal/service"
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

	consumer := queue.NewRabbitMQConsumer(rmq, cfg.QueueConcurrency, logger)
	defer consumer.Close()

	live, err := infraredis.NewRedisLivePublisher(rdb)
	if err != nil {
		logger.Fatal("live publisher initialization failed", zap.Error(err))
	}

	index, err := infraredis.NewRedisSearchIndex(rdb)
	if err != nil {
		logger.Fatal("search index initialization failed", zap.Error(err))
	}

	var alerter alert.Alerter = alert.NopAlerter{}
	if cfg.OpsAlertURL != "" {
		alerter, err = alert.NewWebhookAlerter(cfg.OpsAlertURL)
		if err != nil {
			logger.Fatal("ops alerter initialization failed", zap.Error(err))
		}
	}

	notifications := repository.NewGormNotificationRepo(db)
	audits := repository.NewGormAuditRepo(db)

	worker, err := service.NewWorkerService(notifications, audits, consumer, live, index, alerter, cfg.QueueConcurrency, logger)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{AppName: "batch-engine-worker"})
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info("batch-engine worker started",
			zap.Int("concurrency", cfg.QueueConcurrency),
			zap.Int("port", cfg.APIPort))
		return worker.Start(ctx)
	})

	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down worker")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && rootCtx.Err() == nil {
		logger.Fatal("worker terminated", zap.Error(err))
	}
}
