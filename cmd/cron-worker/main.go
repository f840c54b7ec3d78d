package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/internal/cron"
	"github.com/avelardi/atelia-backend/internal/notifications"
	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/internal/wallets"
	"github.com/avelardi/atelia-backend/pkg/config"
	"github.com/avelardi/atelia-backend/pkg/db"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/metrics"
	"github.com/avelardi/atelia-backend/pkg/migrate"
	"github.com/avelardi/atelia-backend/pkg/outbox"
	"github.com/avelardi/atelia-backend/pkg/redis"
	"github.com/avelardi/atelia-backend/pkg/stripe"
)

const (
	lockKeyFormat = "atl:cron-worker:lock:%s"

	// Read notifications are kept this many days before cleanup reclaims them.
	notificationRetentionDays = 90
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	feeRate, err := cfg.Settlement.FeeRate()
	if err != nil {
		logg.Error(context.Background(), "invalid platform fee rate", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	walletsService, err := wallets.NewService(
		wallets.NewRepository(dbClient.DB()),
		dbClient,
		wallets.StaticFeeRate{Rate: feeRate},
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallets service", err)
		os.Exit(1)
	}

	confirmationService, err := confirmation.NewService(
		confirmation.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		walletsService,
		logg,
		cfg.Settlement.ConfirmationWindow,
		time.Now,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create confirmation service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(
		payouts.NewRepository(dbClient.DB()),
		dbClient,
		walletsService,
		stripeClient,
		outboxService,
		settlementMetrics,
		logg,
		payouts.Config{
			MinimumPayoutCents:   cfg.Settlement.MinimumPayoutCents,
			ProcessorCallTimeout: cfg.Settlement.ProcessorCallTimeout,
			ReconcileAfter:       cfg.Settlement.ReconcileAfter,
		},
		time.Now,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	autoCompleteJob, err := cron.NewAutoCompleteJob(cron.AutoCompleteJobParams{
		Logger:  logg,
		Sweeper: confirmationService,
		Metrics: settlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-complete job", err)
		os.Exit(1)
	}
	payoutRunJob, err := cron.NewPayoutRunJob(cron.PayoutRunJobParams{
		Logger:  logg,
		Payouts: payoutsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout-run job", err)
		os.Exit(1)
	}
	payoutReconcileJob, err := cron.NewPayoutReconcileJob(cron.PayoutReconcileJobParams{
		Logger:  logg,
		Payouts: payoutsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout-reconcile job", err)
		os.Exit(1)
	}
	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
		BatchSize:  cfg.Outbox.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox-retention job", err)
		os.Exit(1)
	}
	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  notificationRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification-cleanup job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(
		autoCompleteJob,
		payoutRunJob,
		payoutReconcileJob,
		outboxRetentionJob,
		notificationCleanupJob,
	)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Settlement.SweepInterval,
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

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
