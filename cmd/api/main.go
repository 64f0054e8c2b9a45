package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gulautos/storefront-backend/api/controllers"
	"github.com/gulautos/storefront-backend/api/routes"
	"github.com/gulautos/storefront-backend/internal/auth"
	"github.com/gulautos/storefront-backend/internal/cart"
	"github.com/gulautos/storefront-backend/internal/categories"
	"github.com/gulautos/storefront-backend/internal/media"
	"github.com/gulautos/storefront-backend/internal/orders"
	product "github.com/gulautos/storefront-backend/internal/products"
	"github.com/gulautos/storefront-backend/internal/users"
	"github.com/gulautos/storefront-backend/pkg/auth/session"
	"github.com/gulautos/storefront-backend/pkg/config"
	"github.com/gulautos/storefront-backend/pkg/db"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/metrics"
	"github.com/gulautos/storefront-backend/pkg/migrate"
	"github.com/gulautos/storefront-backend/pkg/mongo"
	"github.com/gulautos/storefront-backend/pkg/pubsub"
	"github.com/gulautos/storefront-backend/pkg/redis"
	"github.com/gulautos/storefront-backend/pkg/security"
	"github.com/gulautos/storefront-backend/pkg/storage/gcs"
)

func main() {
	configureJSON()
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Env:         cfg.App.Env,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)
	defer gcsClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := []controllers.Dependency{
		{Name: "database", Pinger: dbClient},
		{Name: "redis", Pinger: redisClient},
		{Name: "gcs", Pinger: gcsClient},
	}

	var cartStore cart.Store
	switch cfg.Cart.Backend() {
	case config.CartStoreMongo:
		mongoClient, err := mongo.New(ctx, cfg.Mongo, logg)
		requireResource(ctx, logg, "mongo", err)
		defer func() {
			if err := mongoClient.Close(context.Background()); err != nil {
				logg.Error(ctx, "error closing mongo", err)
			}
		}()
		collection := mongoClient.Collection(cart.CollectionName)
		requireResource(ctx, logg, "mongo cart indexes", cart.EnsureIndexes(ctx, collection, cfg.Cart.TTL))
		cartStore, err = cart.NewMongoStore(collection)
		requireResource(ctx, logg, "mongo cart store", err)
		deps = append(deps, controllers.Dependency{Name: "mongo", Pinger: mongoClient})
	default:
		cartStore, err = cart.NewRedisStore(redisClient, cfg.Cart.TTL)
		requireResource(ctx, logg, "redis cart store", err)
	}

	var deletions media.DeletionQueue
	if cfg.PubSub.Enabled() {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer pubsubClient.Close()
		requireResource(ctx, logg, "media deletion topic", pubsubClient.EnsureMediaDeletionTopic(ctx))
		deletions, err = media.NewPubSubDeletionQueue(pubsubClient.MediaDeletionPublisher())
		requireResource(ctx, logg, "media deletion queue", err)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	userRepo := users.NewRepository(dbClient.DB())
	productRepo := product.NewRepository(dbClient.DB())
	categoryRepo := categories.NewRepository(dbClient.DB())

	cartService, err := cart.NewService(cartStore, productRepo, metrics.NewCartMetrics(registry), logg)
	requireResource(ctx, logg, "cart service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		Carts:          cartService,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	requireResource(ctx, logg, "auth service", err)

	productService, err := product.NewService(productRepo, categoryRepo)
	requireResource(ctx, logg, "product service", err)

	categoryService, err := categories.NewService(categoryRepo, productRepo)
	requireResource(ctx, logg, "category service", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Products: productRepo,
		Carts:    cartService,
		Tx:       dbClient,
		Logger:   logg,
	})
	requireResource(ctx, logg, "orders service", err)

	mediaService, err := media.NewService(media.ServiceParams{
		Repo:           media.NewRepository(dbClient.DB()),
		Objects:        gcsClient,
		Deletions:      deletions,
		MaxUploadBytes: cfg.Media.MaxUploadBytes(),
		MaxFiles:       cfg.Media.MaxFilesPerReq,
		Logger:         logg,
	})
	requireResource(ctx, logg, "media service", err)

	userService, err := users.NewService(userRepo)
	requireResource(ctx, logg, "user service", err)

	router := routes.NewRouter(routes.Params{
		Config:          cfg,
		Logger:          logg,
		Gatherer:        registry,
		HTTPMetrics:     metrics.NewHTTPMetrics(registry),
		Redis:           redisClient,
		Dependencies:    deps,
		Sessions:        sessionManager,
		AuthService:     authService,
		ProductService:  productService,
		CategoryService: categoryService,
		CartService:     cartService,
		OrderService:    orderService,
		MediaService:    mediaService,
		UserService:     userService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"cart_store": cfg.Cart.Backend(),
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

// configureJSON makes prices go over the wire as JSON numbers, as the SPA expects.
func configureJSON() {
	decimal.MarshalJSONWithoutQuotes = true
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
