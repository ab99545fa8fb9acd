package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taxdesk/internal/api/http/handlers"
	"github.com/spec-kit/taxdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tax            *handlers.TaxHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	taxGroup := api.Group("/tax", cfg.AuthMiddleware.Handle)
	taxGroup.Get("/profile", cfg.Tax.GetProfile)
	taxGroup.Post("/profile", cfg.Tax.SaveProfile)
}
