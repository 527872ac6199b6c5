package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agromart/agromart-backend/api/controllers"
	"github.com/agromart/agromart-backend/api/middleware"
	"github.com/agromart/agromart-backend/api/responses"
	"github.com/agromart/agromart-backend/internal/addresses"
	"github.com/agromart/agromart-backend/internal/auth"
	"github.com/agromart/agromart-backend/internal/cart"
	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/internal/notifications"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/internal/payments"
	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/internal/reviews"
	"github.com/agromart/agromart-backend/internal/wishlist"
	"github.com/agromart/agromart-backend/pkg/auth/session"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/redis"
)

// Dependencies carries everything the router hands to middleware and
// controllers. Nil services make their routes answer 500.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	Pingers        map[string]controllers.Pinger
	Sessions       session.Checker
	RateLimiter    redis.RateLimiter
	Idempotency    redis.IdempotencyStore
	HTTPMetrics    *metrics.HTTP
	MetricsHandler http.Handler

	Auth      auth.Service
	Products  product.Service
	Reviews   reviews.Service
	Cart      cart.Service
	Coupons   coupons.Service
	Orders    orders.Service
	Payments  payments.Service
	Addresses addresses.Service

	Notifications notifications.Service
	Wishlist      wishlist.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
	)
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	loginLimit := middleware.RateLimit(middleware.LoginRateLimitPolicy(cfg.RateLimit), deps.RateLimiter, logg)
	registerLimit := middleware.RateLimit(middleware.RegisterRateLimitPolicy(cfg.RateLimit), deps.RateLimiter, logg)
	idempotent := middleware.Idempotent(deps.Idempotency, cfg.App.IdempotencyTTL, cfg.App.IdempotencyLockTTL, logg)
	couponLimit := middleware.RateLimit(middleware.CouponValidateRateLimitPolicy(cfg.RateLimit), deps.RateLimiter, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(registerLimit).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(loginLimit).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		// Public catalog.
		r.Get("/categories", controllers.ListCategories(deps.Products, logg))
		r.Get("/products", controllers.ListProducts(deps.Products, logg, false))
		r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
		r.Get("/products/{productId}/reviews", controllers.ListProductReviews(deps.Reviews, logg))
		r.Get("/products/{productId}/reviews/summary", controllers.ProductReviewSummary(deps.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", controllers.Me(deps.Auth, logg))

			r.Post("/products/{productId}/reviews", controllers.CreateReview(deps.Reviews, logg))
			r.Delete("/reviews/{reviewId}", controllers.DeleteReview(deps.Reviews, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(deps.Cart, logg))
				r.Delete("/", controllers.ClearCart(deps.Cart, logg))
				r.Post("/items", controllers.AddCartItem(deps.Cart, logg))
				r.Patch("/items/{itemId}", controllers.UpdateCartItem(deps.Cart, logg))
				r.Delete("/items/{itemId}", controllers.RemoveCartItem(deps.Cart, logg))
				r.Post("/sync", controllers.SyncCart(deps.Cart, logg))
			})

			r.With(couponLimit).Post("/coupons/validate", controllers.ValidateCoupon(validatorOrNil(deps.Coupons), deps.Cart, logg))

			r.Route("/orders", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.CreateOrder(deps.Orders, logg))
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
				r.Get("/{orderId}/invoice", controllers.OrderInvoice(deps.Orders, logg))
				r.With(idempotent).Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
				r.With(idempotent).Post("/{orderId}/pay", controllers.PayOrder(deps.Payments, logg))
			})

			r.Get("/payments/{intentId}", controllers.PaymentStatus(deps.Payments, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.ListAddresses(deps.Addresses, logg))
				r.Post("/", controllers.CreateAddress(deps.Addresses, logg))
				r.Put("/{addressId}", controllers.UpdateAddress(deps.Addresses, logg))
				r.Delete("/{addressId}", controllers.DeleteAddress(deps.Addresses, logg))
				r.Post("/{addressId}/default", controllers.SetDefaultAddress(deps.Addresses, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.GetWishlist(deps.Wishlist, logg))
				r.Get("/ids", controllers.GetWishlistIDs(deps.Wishlist, logg))
				r.Post("/{productId}", controllers.AddWishlistItem(deps.Wishlist, logg))
				r.Delete("/{productId}", controllers.RemoveWishlistItem(deps.Wishlist, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ListProducts(deps.Products, logg, true))
				r.Post("/", controllers.AdminCreateProduct(deps.Products, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.Products, logg))
				r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Products, logg))
				r.Post("/{productId}/stock", controllers.AdminAdjustStock(deps.Products, logg))
			})
			r.Post("/categories", controllers.AdminCreateCategory(deps.Products, logg))
			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.AdminListCoupons(deps.Coupons, logg))
				r.Post("/", controllers.AdminCreateCoupon(deps.Coupons, logg))
				r.Get("/{couponId}", controllers.AdminGetCoupon(deps.Coupons, logg))
				r.Patch("/{couponId}", controllers.AdminUpdateCoupon(deps.Coupons, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
				r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
			})
		})
	})

	return r
}

// validatorOrNil keeps a nil service from becoming a non-nil interface.
func validatorOrNil(svc coupons.Service) coupons.Validator {
	if svc == nil {
		return nil
	}
	return svc
}
