// Package routes assembles the chi router over the cart controllers.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront-kit/cartengine/api/controllers"
	cartcontrollers "github.com/storefront-kit/cartengine/api/controllers/cart"
	"github.com/storefront-kit/cartengine/api/middleware"
	"github.com/storefront-kit/cartengine/internal/service"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/logger"
)

// Params carries everything the router wires together.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *service.Registry
	Verifier *auth.Verifier
	Pingers  map[string]controllers.Pinger
	Metrics  prometheus.Gatherer
}

// NewRouter builds the HTTP surface of the cart engine.
func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.Pingers))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Identity(p.Verifier, p.Logger))

		r.Get("/", cartcontrollers.Fetch(p.Registry, p.Logger))
		r.Delete("/", cartcontrollers.Clear(p.Registry, p.Logger))

		r.Post("/items", cartcontrollers.AddItem(p.Registry, p.Logger))
		r.Patch("/items/{key}", cartcontrollers.UpdateItem(p.Registry, p.Logger))
		r.Delete("/items/{key}", cartcontrollers.RemoveItem(p.Registry, p.Logger))

		r.Post("/coupons", cartcontrollers.ApplyCoupon(p.Registry, p.Logger))
		r.Delete("/coupons/{code}", cartcontrollers.RemoveCoupon(p.Registry, p.Logger))

		r.Post("/validate", cartcontrollers.Validate(p.Registry, p.Logger))

		r.Post("/sync", cartcontrollers.Sync(p.Registry, p.Logger))
		r.Post("/sync/enable", cartcontrollers.EnableSync(p.Registry, p.Logger))
		r.Post("/sync/disable", cartcontrollers.DisableSync(p.Registry, p.Logger))
	})

	return r
}
