package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/service"
	"github.com/ReMyndassessments/concern2care-api/internal/utils"
)

// AdminAnalyticsHandler serves the cached pipeline overview.
type AdminAnalyticsHandler struct {
	analytics service.AnalyticsService
	logger    zerolog.Logger
}

// NewAdminAnalyticsHandler constructs the analytics handler.
func NewAdminAnalyticsHandler(analytics service.AnalyticsService, logger zerolog.Logger) *AdminAnalyticsHandler {
	return &AdminAnalyticsHandler{
		analytics: analytics,
		logger:    logger.With().Str("component", "admin_analytics_handler").Logger(),
	}
}

// Register wires analytics routes.
func (h *AdminAnalyticsHandler) Register(router fiber.Router) {
	router.Get("/overview", h.overview)
}

func (h *AdminAnalyticsHandler) overview(c *fiber.Ctx) error {
	overview, err := h.analytics.Overview(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build analytics overview")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build analytics overview")
	}

	return utils.SendSuccess(c, "analytics overview retrieved", overview)
}
