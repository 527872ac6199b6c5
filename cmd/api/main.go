package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agromart/agromart-backend/api/controllers"
	"github.com/agromart/agromart-backend/api/routes"
	"github.com/agromart/agromart-backend/internal/addresses"
	"github.com/agromart/agromart-backend/internal/auth"
	"github.com/agromart/agromart-backend/internal/cart"
	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/internal/notifications"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/internal/payments"
	"github.com/agromart/agromart-backend/internal/pricing"
	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/internal/reviews"
	"github.com/agromart/agromart-backend/internal/users"
	"github.com/agromart/agromart-backend/internal/wishlist"
	"github.com/agromart/agromart-backend/pkg/auth/session"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/migrate"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/redis"
	"github.com/agromart/agromart-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(cfg, logg, dbClient, sessionManager, metrics.NewCommerce(promRegistry))
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Pingers = map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	deps.Sessions = sessionManager
	deps.RateLimiter = redisClient
	deps.Idempotency = redisClient
	deps.HTTPMetrics = metrics.NewHTTP(promRegistry)
	deps.MetricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("INSTANCE_ID")
	if id == "" {
		id = "local"
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// buildDependencies wires the domain services behind the HTTP router.
func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessions *session.Manager, commerce *metrics.Commerce) (routes.Dependencies, error) {
	conn := dbClient.DB()

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(conn),
		SessionManager: sessions,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	reviewService, err := reviews.NewService(reviews.NewRepository(conn), logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	productRepo := product.NewRepository(conn)
	productService, err := product.NewService(productRepo, reviewService)
	if err != nil {
		return routes.Dependencies{}, err
	}

	couponService, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:           cartRepo,
		Products:       productRepo,
		Coupons:        couponService,
		DB:             dbClient,
		Logger:         logg,
		Metrics:        commerce,
		SyncPerItemCap: cfg.Cart.SyncPerItemCap,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	addressService, err := addresses.NewService(addresses.NewRepository(conn), dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}

	calculator, err := pricing.NewCalculator(cfg.Pricing)
	if err != nil {
		return routes.Dependencies{}, err
	}

	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orderRepo,
		Carts:     cartRepo,
		Coupons:   couponService,
		Stock:     product.NewInventory(productRepo),
		Outbox:    emitter,
		DB:        dbClient,
		Pricing:   calculator,
		Addresses: addressService,
		Logger:    logg,
		Metrics:   commerce,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	gateway, err := payments.NewMockGateway(cfg.Payment.SuccessRate, nil)
	if err != nil {
		return routes.Dependencies{}, err
	}
	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:    payments.NewRepository(conn),
		Orders:  orderRepo,
		Flow:    orderService,
		Gateway: gateway,
		Outbox:  emitter,
		DB:      dbClient,
		Logger:  logg,
		Metrics: commerce,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}
	wishlistService, err := wishlist.NewService(wishlist.NewRepository(conn), productRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		Auth:          authService,
		Products:      productService,
		Reviews:       reviewService,
		Cart:          cartService,
		Coupons:       couponService,
		Orders:        orderService,
		Payments:      paymentService,
		Addresses:     addressService,
		Notifications: notificationService,
		Wishlist:      wishlistService,
	}, nil
}
