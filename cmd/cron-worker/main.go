package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookmarket-io/bookmarket-backend/internal/cron"
	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/internal/loans"
	"github.com/bookmarket-io/bookmarket-backend/internal/orders"
	"github.com/bookmarket-io/bookmarket-backend/pkg/config"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
	"github.com/bookmarket-io/bookmarket-backend/pkg/metrics"
	"github.com/bookmarket-io/bookmarket-backend/pkg/migrate"
	"github.com/bookmarket-io/bookmarket-backend/pkg/outbox"
	"github.com/bookmarket-io/bookmarket-backend/pkg/redis"
)

const lockKeyFormat = "bm:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if err := registerJobs(registry, cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func registerJobs(registry *cron.Registry, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) error {
	gormDB := dbClient.DB()

	ordersRepo := orders.NewRepository(gormDB)
	listingsRepo := listings.NewRepository(gormDB)
	tracker := listings.NewTracker()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	orderExpiration, err := cron.NewOrderExpirationJob(cron.OrderExpirationJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: ordersRepo,
		Tracker:    tracker,
		Outbox:     outboxService,
	})
	if err != nil {
		return fmt.Errorf("order expiration job: %w", err)
	}
	registry.Register(orderExpiration)

	loansService, err := loans.NewService(loans.NewRepository(gormDB), listingsRepo, dbClient, outboxService, tracker)
	if err != nil {
		return fmt.Errorf("loans service: %w", err)
	}
	loanOverdue, err := cron.NewLoanOverdueJob(cron.LoanOverdueJobParams{
		Logger: logg,
		Loans:  loansService,
	})
	if err != nil {
		return fmt.Errorf("loan overdue job: %w", err)
	}
	registry.Register(loanOverdue)

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(gormDB),
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	registry.Register(outboxRetention)

	return nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
