package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/cartsync-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/cartsync-backend/api/controllers/cart"
	wishlistcontrollers "github.com/angelmondragon/cartsync-backend/api/controllers/wishlist"
	"github.com/angelmondragon/cartsync-backend/api/middleware"
	"github.com/angelmondragon/cartsync-backend/internal/cart"
	"github.com/angelmondragon/cartsync-backend/internal/wishlist"
	"github.com/angelmondragon/cartsync-backend/pkg/config"
	"github.com/angelmondragon/cartsync-backend/pkg/db"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/redis"
)

// Merger runs the one-time guest merges.
type Merger interface {
	cartcontrollers.Merger
	wishlistcontrollers.Merger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	wishlistService wishlist.Service,
	merger Merger,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	var idempotency redis.IdempotencyStore
	readiness := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		idempotency = redisClient
		readiness["redis"] = redisClient
	}
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotency, cfg.Cart.IdempotencyTTL, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Patch("/items/{lineItemId}", cartcontrollers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{lineItemId}", cartcontrollers.CartRemoveItem(cartService, logg))
			r.Post("/merge", cartcontrollers.CartMerge(merger, logg))
			r.Post("/{cartId}/coupon", cartcontrollers.CartApplyCoupon(cartService, logg))
			r.Delete("/{cartId}/coupon", cartcontrollers.CartRemoveCoupon(cartService, logg))
			r.Delete("/{cartId}", cartcontrollers.CartClear(cartService, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistcontrollers.WishlistFetch(wishlistService, logg))
			r.Delete("/", wishlistcontrollers.WishlistClear(wishlistService, logg))
			r.Post("/items", wishlistcontrollers.WishlistAdd(wishlistService, logg))
			r.Delete("/items/{productId}", wishlistcontrollers.WishlistRemove(wishlistService, logg))
			r.Post("/merge", wishlistcontrollers.WishlistMerge(merger, logg))
		})
	})

	return otelhttp.NewHandler(r, "cartsync-api",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/metrics" && req.URL.Path != "/health/live"
		}),
	)
}
