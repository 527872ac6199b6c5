package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agromart/agromart-backend/internal/cart"
	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/internal/cron"
	"github.com/agromart/agromart-backend/internal/notifications"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/internal/pricing"
	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/instance"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/migrate"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

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

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry, err := buildJobs(cfg, logg, dbClient, metrics.NewCommerce(promRegistry))
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.App.Env, instance.ID(serviceName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewJobMetrics(promRegistry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(serviceName),
	})

	if *once {
		service.RunOnce(ctx)
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, commerce *metrics.Commerce) (*cron.Registry, error) {
	conn := dbClient.DB()

	couponService, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	calculator, err := pricing.NewCalculator(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	orderRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Carts:   cart.NewRepository(conn),
		Coupons: couponService,
		Stock:   product.NewInventory(product.NewRepository(conn)),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		DB:      dbClient,
		Pricing: calculator,
		Logger:  logg,
		Metrics: commerce,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:    logg,
		DB:        dbClient,
		Orders:    orderRepo,
		Lifecycle: orderService,
		Metrics:   commerce,
		TTL:       cfg.Cron.PendingOrderTTL,
	})
	if err != nil {
		return nil, err
	}
	retention := cron.RetentionParams{Logger: logg, DB: dbClient}

	retention.Retention = cfg.Cron.NotificationRetention
	notificationCleanup, err := cron.NewNotificationCleanupJob(retention, notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	retention.Retention = cfg.Cron.OutboxRetention
	outboxRetention, err := cron.NewOutboxRetentionJob(retention, outbox.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{expiry, notificationCleanup, outboxRetention} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
