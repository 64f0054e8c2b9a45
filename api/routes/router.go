package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gulautos/storefront-backend/api/controllers"
	"github.com/gulautos/storefront-backend/api/middleware"
	"github.com/gulautos/storefront-backend/internal/auth"
	"github.com/gulautos/storefront-backend/internal/cart"
	"github.com/gulautos/storefront-backend/internal/categories"
	"github.com/gulautos/storefront-backend/internal/media"
	"github.com/gulautos/storefront-backend/internal/orders"
	product "github.com/gulautos/storefront-backend/internal/products"
	"github.com/gulautos/storefront-backend/internal/users"
	"github.com/gulautos/storefront-backend/pkg/auth/session"
	"github.com/gulautos/storefront-backend/pkg/config"
	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/metrics"
	"github.com/gulautos/storefront-backend/pkg/redis"
)

// Params carries everything the HTTP surface is built from. Nil pingers are
// skipped by the readiness probe and a nil Redis client disables auth rate
// limiting.
type Params struct {
	Config          *config.Config
	Logger          *logger.Logger
	Gatherer        prometheus.Gatherer
	HTTPMetrics     *metrics.HTTPMetrics
	Redis           *redis.Client
	Dependencies    []controllers.Dependency
	Sessions        session.AccessSessionChecker
	AuthService     auth.Service
	ProductService  product.Service
	CategoryService categories.Service
	CartService     cart.Service
	OrderService    orders.Service
	MediaService    media.Service
	UserService     users.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	cookies := controllers.CookieSettingsFromConfig(cfg)
	uploadLimits := controllers.UploadLimits{
		MaxFileBytes: cfg.Media.MaxUploadBytes(),
		MaxFiles:     cfg.Media.MaxFilesPerReq,
	}

	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, p.Sessions, logg)
	sessionToken := middleware.SessionToken(cfg.JWT, logg)
	requireAdmin := middleware.RequireRole(enums.UserRoleAdmin, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Dependencies...))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(rateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, cookies, logg))
		r.With(rateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.AuthService, logg))
		r.With(sessionToken).Post("/logout", controllers.AuthLogout(p.AuthService, cookies, logg))
		r.With(sessionToken).Post("/refresh", controllers.AuthRefresh(p.AuthService, cookies, logg))
		r.With(requireAuth).Get("/verify-token", controllers.AuthVerifyToken(p.AuthService, logg))

		r.Route("/products", func(r chi.Router) {
			r.With(optionalAuth).Get("/", controllers.ProductList(p.ProductService, logg))
			r.With(optionalAuth).Get("/{productId}", controllers.ProductDetail(p.ProductService, logg))
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Post("/", controllers.ProductCreate(p.ProductService, logg))
				r.Put("/{productId}", controllers.ProductUpdate(p.ProductService, logg))
				r.Delete("/{productId}", controllers.ProductDelete(p.ProductService, logg))
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(p.CategoryService, logg))
			r.Get("/{categoryId}", controllers.CategoryDetail(p.CategoryService, logg))
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Post("/", controllers.CategoryCreate(p.CategoryService, logg))
				r.Put("/{categoryId}", controllers.CategoryUpdate(p.CategoryService, logg))
				r.Delete("/{categoryId}", controllers.CategoryDelete(p.CategoryService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(p.CartService, logg))
				r.Delete("/", controllers.CartEmpty(p.CartService, logg))
				r.Post("/items", controllers.CartAddItem(p.CartService, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(p.CartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(p.CartService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCheckout(p.OrderService, logg))
				r.Get("/", controllers.OrderList(p.OrderService, logg))
				r.Get("/{orderId}", controllers.OrderDetail(p.OrderService, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/admin/orders", controllers.AdminOrderList(p.OrderService, logg))
				r.Patch("/admin/orders/{orderId}/status", controllers.AdminOrderUpdateStatus(p.OrderService, logg))

				r.Route("/media", func(r chi.Router) {
					r.Get("/", controllers.MediaList(p.MediaService, logg))
					r.Post("/upload", controllers.MediaUpload(p.MediaService, uploadLimits, logg))
					r.Delete("/bulk", controllers.MediaBulkDelete(p.MediaService, logg))
					r.Delete("/{mediaId}", controllers.MediaDelete(p.MediaService, logg))
				})

				r.Get("/all-users", controllers.UserList(p.UserService, logg))
				r.Patch("/users/{userId}/role", controllers.UserUpdateRole(p.UserService, logg))
			})
		})
	})

	return r
}

func rateLimit(policy middleware.AuthRateLimitPolicy, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.AuthRateLimit(policy, client, logg)
}
