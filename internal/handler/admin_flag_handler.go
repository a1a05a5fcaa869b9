package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/service"
	"github.com/ReMyndassessments/concern2care-api/internal/utils"
)

// AdminFlagHandler manages operational feature flags.
type AdminFlagHandler struct {
	flags  service.FlagService
	logger zerolog.Logger
}

// NewAdminFlagHandler constructs the flag handler.
func NewAdminFlagHandler(flags service.FlagService, logger zerolog.Logger) *AdminFlagHandler {
	return &AdminFlagHandler{
		flags:  flags,
		logger: logger.With().Str("component", "admin_flag_handler").Logger(),
	}
}

// Register wires flag routes.
func (h *AdminFlagHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Put("", h.update)
}

func (h *AdminFlagHandler) list(c *fiber.Ctx) error {
	flags, err := h.flags.List(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list flags")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list flags")
	}

	return utils.SendSuccess(c, "flags retrieved", flags)
}

func (h *AdminFlagHandler) update(c *fiber.Ctx) error {
	var payload dto.FlagUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.flags.Update(c.UserContext(), payload, adminIDFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid flag payload")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update flag")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update flag")
	}

	return utils.SendSuccess(c, "flag updated", response)
}
