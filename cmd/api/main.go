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

	"github.com/angelmondragon/cartsync-backend/api/routes"
	"github.com/angelmondragon/cartsync-backend/internal/cart"
	"github.com/angelmondragon/cartsync-backend/internal/cartcache"
	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/internal/merge"
	"github.com/angelmondragon/cartsync-backend/internal/wishlist"
	"github.com/angelmondragon/cartsync-backend/pkg/config"
	"github.com/angelmondragon/cartsync-backend/pkg/db"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/metrics"
	"github.com/angelmondragon/cartsync-backend/pkg/migrate"
	"github.com/angelmondragon/cartsync-backend/pkg/redis"
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

	cartMetrics := metrics.NewCartMetrics(prometheus.DefaultRegisterer)
	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	wishlistRepo := wishlist.NewRepository(dbClient.DB())

	var cache cartcache.Cache = cartcache.Noop{}
	if cfg.FeatureFlags.CartCache {
		cache = cartcache.NewRedisCache(redisClient, cfg.Cart.CacheTTL)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:              cartRepo,
		Catalog:           catalogRepo,
		Tx:                dbClient,
		Cache:             cache,
		Metrics:           cartMetrics,
		Logger:            logg,
		LowStockThreshold: cfg.Cart.LowStockThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlistRepo,
		Catalog:      catalogRepo,
		Tx:           dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist service", err)
		os.Exit(1)
	}

	coordinator, err := merge.NewCoordinator(merge.Params{
		Records:   merge.NewRepository(dbClient.DB()),
		Carts:     cartRepo,
		Wishlists: wishlistRepo,
		Catalog:   catalogRepo,
		CartSvc:   cartService,
		Wishlist:  wishlistService,
		Tx:        dbClient,
		Locks:     redisClient,
		LockTTL:   cfg.Merge.LockTTL,
		Metrics:   cartMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create merge coordinator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
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
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, cartService, wishlistService, coordinator, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}
