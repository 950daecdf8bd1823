package router

import (
	"net/http"

	"grocer/internal/config"
	"grocer/internal/handler"
	"grocer/internal/metrics"
	"grocer/internal/middleware"
	"grocer/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Health   *handler.HealthHandler
	Orders   *handler.OrderHandler
	Payments *handler.PaymentHandler
	Cart     *handler.CartHandler
	Restock  *handler.RestockHandler
}

// Options carries the cross-cutting settings for the router.
type Options struct {
	Auth     config.AuthConfig
	CORS     config.CORSConfig
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Request id first so recovery and logging can report it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.CORS(opts.CORS))

	r.Get("/health", h.Health.Check)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Authenticated by signature, not bearer token.
	r.Post("/api/webhooks/stripe", h.Payments.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(opts.Auth, logger))

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.Orders.Create)
			r.Get("/mine", h.Orders.ListMine)
			r.With(middleware.RequireRole(model.RoleCourier)).Get("/assigned", h.Orders.ListAssigned)
			r.With(middleware.RequireRole(model.RoleCashier)).Get("/sales", h.Orders.ListSales)
			r.Put("/cash-out", h.Orders.CashOut)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Orders.GetByID)
				r.Put("/delivered", h.Orders.MarkDelivered)
				r.Put("/state", h.Orders.UpdateState)
				r.With(middleware.RequireRole(model.RoleAdmin)).Put("/courier", h.Orders.AssignCourier)
				r.With(middleware.RequireRole(model.RoleAdmin)).Delete("/", h.Orders.Delete)
			})
		})

		r.Post("/api/payments/checkout", h.Payments.Checkout)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.Cart.Get)
			r.Put("/", h.Cart.Replace)
			r.Delete("/", h.Cart.Clear)
		})

		r.With(middleware.RequireRole(model.RoleAdmin)).Get("/api/stock/low", h.Restock.LowStock)

		r.Route("/api/supplier-orders", func(r chi.Router) {
			r.With(middleware.RequireRole(model.RoleAdmin)).Post("/", h.Restock.Create)
			r.With(middleware.RequireRole(model.RoleSupplier)).Get("/mine", h.Restock.ListMine)
			r.With(middleware.RequireRole(model.RoleAdmin)).Get("/pending-review", h.Restock.ListAwaitingReview)
			r.With(middleware.RequireRole(model.RoleSupplier)).Put("/{id}/prices", h.Restock.Quote)
			r.Put("/{id}/payment", h.Restock.ConfirmPayment)
			r.With(middleware.RequireRole(model.RoleAdmin)).Put("/{id}/review", h.Restock.Review)
		})
	})

	return r
}
