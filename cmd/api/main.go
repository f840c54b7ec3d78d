package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avelardi/atelia-backend/api/controllers"
	"github.com/avelardi/atelia-backend/api/routes"
	"github.com/avelardi/atelia-backend/internal/audit"
	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/internal/disputes"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
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

	disputesService, err := disputes.NewService(
		disputes.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		confirmationService,
		audit.NewRecorder(dbClient.DB()),
		logg,
		time.Now,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
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

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config: cfg,
			Logger: logg,
			Redis:  redisClient,
			HealthChecks: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Confirmations: confirmationService,
			Disputes:      disputesService,
			Wallets:       walletsService,
			Payouts:       payoutsService,
			Notifications: notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
