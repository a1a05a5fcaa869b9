package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/service"
	"github.com/ReMyndassessments/concern2care-api/internal/utils"
)

// ReferralHandler exposes the public intake endpoint.
type ReferralHandler struct {
	service service.IntakeService
	logger  zerolog.Logger
}

// NewReferralHandler constructs a referral handler.
func NewReferralHandler(service service.IntakeService, logger zerolog.Logger) *ReferralHandler {
	return &ReferralHandler{
		service: service,
		logger:  logger.With().Str("component", "referral_handler").Logger(),
	}
}

// Register wires referral routes.
func (h *ReferralHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/:reference", h.status)
}

func (h *ReferralHandler) submit(c *fiber.Ctx) error {
	var payload dto.ReferralRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Submit(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid referral payload")
		case errors.Is(err, service.ErrIntakeClosed):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "referral intake is temporarily closed")
		case errors.Is(err, service.ErrIntakeDuplicate):
			return utils.SendError(c, fiber.StatusTooManyRequests, "an identical referral was submitted moments ago")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to process referral")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit referral")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "referral accepted", response)
}

func (h *ReferralHandler) status(c *fiber.Ctx) error {
	response, err := h.service.Status(c.UserContext(), c.Params("reference"))
	if err != nil {
		if errors.Is(err, service.ErrReferralNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "referral not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load referral status")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load referral status")
	}

	return utils.SendSuccess(c, "referral status retrieved", response)
}
