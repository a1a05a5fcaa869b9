package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ReMyndassessments/concern2care-api/internal/config"
	"github.com/ReMyndassessments/concern2care-api/internal/handler"
	"github.com/ReMyndassessments/concern2care-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReferralHandler  *handler.ReferralHandler
	AdminSubmissions *handler.AdminSubmissionHandler
	AdminFlags       *handler.AdminFlagHandler
	AdminAnalytics   *handler.AdminAnalyticsHandler
	Events           *handler.EventsHandler
	JWTMiddleware    fiber.Handler
	RequireAdminRole fiber.Handler
	IntakeRateLimit  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	requireAdmin := deps.RequireAdminRole
	if requireAdmin == nil {
		requireAdmin = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ReferralHandler != nil {
		referrals := api.Group("/referrals")
		if deps.IntakeRateLimit != nil {
			referrals.Use(deps.IntakeRateLimit)
		}
		deps.ReferralHandler.Register(referrals)
	}

	admin := api.Group("/admin", jwtMiddleware, requireAdmin)

	if deps.AdminSubmissions != nil {
		deps.AdminSubmissions.Register(admin.Group("/submissions"))
	}
	if deps.AdminFlags != nil {
		deps.AdminFlags.Register(admin.Group("/flags"))
	}
	if deps.AdminAnalytics != nil {
		deps.AdminAnalytics.Register(admin.Group("/analytics"))
	}
	if deps.Events != nil {
		deps.Events.Register(admin.Group("/events"))
	}
}
