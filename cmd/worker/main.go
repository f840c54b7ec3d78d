package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/avelardi/atelia-backend/internal/notifications"
	"github.com/avelardi/atelia-backend/internal/refunds"
	"github.com/avelardi/atelia-backend/pkg/config"
	"github.com/avelardi/atelia-backend/pkg/db"
	"github.com/avelardi/atelia-backend/pkg/instance"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/migrate"
	"github.com/avelardi/atelia-backend/pkg/outbox/idempotency"
	"github.com/avelardi/atelia-backend/pkg/pubsub"
	"github.com/avelardi/atelia-backend/pkg/redis"
	"github.com/avelardi/atelia-backend/pkg/square"
)

// The settlement worker runs the event-driven side of settlement: in-app
// notifications and buyer refund execution, each on its own subscription.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "settlement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	notificationSub := pubsubClient.NotificationSubscription()
	if notificationSub == nil {
		requireResource(ctx, logg, "notification subscription", errors.New("subscription not configured"))
	}
	refundSub := pubsubClient.RefundSubscription()
	if refundSub == nil {
		requireResource(ctx, logg, "refund subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		notificationSub,
		manager,
		logg,
	)
	requireResource(ctx, logg, "notification consumer", err)

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	requireResource(ctx, logg, "square", err)

	refundConsumer, err := refunds.NewConsumer(
		squareClient,
		refunds.NewRepository(dbClient.DB()),
		refundSub,
		manager,
		logg,
	)
	requireResource(ctx, logg, "refund consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "settlement worker ready")

	errCh := make(chan error, 2)
	go func() {
		errCh <- runConsumer(runCtx, "notifications", notificationConsumer)
	}()
	go func() {
		errCh <- runConsumer(runCtx, "refunds", refundConsumer)
	}()

	// Both consumers stop when the context is canceled; a failure in either
	// takes the process down so the orchestrator restarts it.
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "settlement worker failed", err)
			stop()
			os.Exit(1)
		}
	}

	logg.Info(runCtx, "settlement worker shutting down gracefully")
}

type runnable interface {
	Run(ctx context.Context) error
}

func runConsumer(ctx context.Context, name string, consumer runnable) error {
	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("%s consumer: %w", name, err)
	}
	return nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
