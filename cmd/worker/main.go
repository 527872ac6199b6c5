package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/agromart/agromart-backend/internal/notifications"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/instance"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox/idempotency"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
	"github.com/agromart/agromart-backend/pkg/pubsub"
	"github.com/agromart/agromart-backend/pkg/redis"
)

const serviceName = "worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.ID(serviceName),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	decoders := registry.NewDecoderRegistryFor(events)

	guard, err := idempotency.NewGuard(redisClient, notifications.ConsumerName, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return err
	}

	repo := notifications.NewRepository(dbClient.DB())
	consumers := map[string]runner{}
	subscriptions := map[string]*string{
		"orders":   &cfg.PubSub.OrdersSubscription,
		"payments": &cfg.PubSub.PaymentsSubscription,
	}
	for name, sub := range subscriptions {
		if *sub == "" {
			logg.Warn(ctx, name+" subscription not configured; skipping consumer")
			continue
		}
		consumer, err := notifications.NewConsumer(repo, pubsubClient.Subscription(*sub), decoders, guard, logg)
		if err != nil {
			return err
		}
		consumers[name] = consumer
	}

	service, err := NewService(ServiceParams{
		Logger: logg,
		Pingers: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Consumers: consumers,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}
