package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WASandaruwan/onlinesales-backend/pkg/health"
	"github.com/WASandaruwan/onlinesales-backend/pkg/middleware"
)

const metricsService = "order"

// NewRouter creates a chi router with all order service routes registered.
func NewRouter(
	orderService OrderService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(metricsService))
	r.Use(middleware.Tracing(metricsService))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	orderHandler := NewOrderHandler(orderService, logger)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", orderHandler.GetOrder)
			r.Patch("/", orderHandler.UpdateOrder)
			r.Delete("/", orderHandler.DeleteOrder)

			r.Get("/items", orderHandler.ListItems)
			r.Post("/items", orderHandler.AddItem)
			r.Get("/items/{itemID}", orderHandler.GetItem)
			r.Patch("/items/{itemID}", orderHandler.UpdateItem)
			r.Delete("/items/{itemID}", orderHandler.RemoveItem)
		})
	})

	return r
}
