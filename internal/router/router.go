package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anama-app/personal-data-api/internal/config"
	"github.com/anama-app/personal-data-api/internal/handler"
	"github.com/anama-app/personal-data-api/internal/middleware"
	"github.com/anama-app/personal-data-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PersonalDataHandler *handler.PersonalDataHandler
	AuthMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Auth is optional: the middleware is a no-op unless a secret is
	// configured in main.
	authMiddleware := deps.AuthMiddleware
	if authMiddleware == nil {
		authMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.PersonalDataHandler != nil {
		group := app.Group("/api/personal-data",
			middleware.RateLimit("personal-data", cfg.RateLimitMax, cfg.RateLimitWindow),
			authMiddleware,
		)
		deps.PersonalDataHandler.Register(group)
	}
}
