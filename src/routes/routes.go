package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"lob-sim/src/config"
	"lob-sim/src/handlers"
	"lob-sim/src/metrics"
	"lob-sim/src/middleware"
)

func SetupRoutes(app *fiber.App, h *handlers.SimHandler, cfg config.ServerConfig, collector *metrics.Collector) {
	availability := middleware.NewServiceAvailability(cfg.MaxConcurrentRequests, cfg.MaintenanceMode)
	app.Use(availability.Middleware())
	app.Use(middleware.RequestMetrics(collector))
	app.Use(middleware.RequestLogger(cfg.RequestLoggingDisabled))

	api := app.Group("/api/v1")

	if !cfg.RateLimitDisabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		api.Use(limiter.Middleware())
	}

	api.Post("/simulation/step", h.Step)
	api.Post("/simulation/reset", h.Reset)
	api.Get("/market/state", h.MarketState)
	api.Get("/market/history", h.History)
	api.Get("/orderbook", h.OrderBook)
	api.Get("/orders/:id/queue", h.QueuePosition)
	api.Get("/accounts/:id", h.Account)
	api.Get("/impact", h.Impact)

	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
}
