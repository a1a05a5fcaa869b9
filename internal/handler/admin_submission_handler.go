package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/service"
	"github.com/ReMyndassessments/concern2care-api/internal/utils"
)

// AdminSubmissionHandler exposes the review queue and its actions.
type AdminSubmissionHandler struct {
	review  service.AdminReviewService
	reports service.ReportService
	logger  zerolog.Logger
}

// NewAdminSubmissionHandler constructs the admin submission handler.
func NewAdminSubmissionHandler(review service.AdminReviewService, reports service.ReportService, logger zerolog.Logger) *AdminSubmissionHandler {
	return &AdminSubmissionHandler{
		review:  review,
		reports: reports,
		logger:  logger.With().Str("component", "admin_submission_handler").Logger(),
	}
}

// Register wires the submission review routes.
func (h *AdminSubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/audit", h.auditTrail)
	router.Get("/:id/report", h.report)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/hold", h.hold)
	router.Post("/:id/cancel", h.cancel)
	router.Post("/:id/escalate", h.escalate)
	router.Post("/:id/resolve", h.resolveEscalation)
	router.Post("/:id/retry-generation", h.retryGeneration)
}

func (h *AdminSubmissionHandler) list(c *fiber.Ctx) error {
	var filter dto.SubmissionListFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.review.List(c.UserContext(), filter)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", response)
}

func (h *AdminSubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	response, err := h.review.Get(c.UserContext(), id)
	if err != nil {
		return h.mapError(c, err, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", response)
}

func (h *AdminSubmissionHandler) auditTrail(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	trail, err := h.review.AuditTrail(c.UserContext(), id)
	if err != nil {
		return h.mapError(c, err, "failed to load audit trail")
	}

	return utils.SendSuccess(c, "audit trail retrieved", trail)
}

func (h *AdminSubmissionHandler) report(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	payload, filename, err := h.reports.SubmissionReport(c.UserContext(), id)
	if err != nil {
		return h.mapError(c, err, "failed to render report")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(payload)
}

func (h *AdminSubmissionHandler) approve(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.AdminActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.review.Approve(c.UserContext(), id, payload.Version, adminIDFromContext(c))
	if err != nil {
		return h.mapError(c, err, "failed to approve submission")
	}

	return utils.SendSuccess(c, "submission approved", response)
}

func (h *AdminSubmissionHandler) hold(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.AdminActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.review.Hold(c.UserContext(), id, payload.Version, adminIDFromContext(c))
	if err != nil {
		return h.mapError(c, err, "failed to hold submission")
	}

	return utils.SendSuccess(c, "submission held", response)
}

func (h *AdminSubmissionHandler) cancel(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.AdminReasonedActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.review.Cancel(c.UserContext(), id, payload.Version, payload.Reason, adminIDFromContext(c))
	if err != nil {
		return h.mapError(c, err, "failed to cancel submission")
	}

	return utils.SendSuccess(c, "submission canceled", response)
}

func (h *AdminSubmissionHandler) escalate(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.AdminReasonedActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.review.Escalate(c.UserContext(), id, payload.Version, payload.Reason, adminIDFromContext(c))
	if err != nil {
		return h.mapError(c, err, "failed to escalate submission")
	}

	return utils.SendSuccess(c, "submission escalated", response)
}

func (h *AdminSubmissionHandler) resolveEscalation(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.ResolveEscalationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.review.ResolveEscalation(c.UserContext(), id, payload.Version, payload.Decision, payload.Reason, adminIDFromContext(c))
	if err != nil {
		return h.mapError(c, err, "failed to resolve escalation")
	}

	return utils.SendSuccess(c, "escalation resolved", response)
}

func (h *AdminSubmissionHandler) retryGeneration(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	response, err := h.review.RetryGeneration(c.UserContext(), id, adminIDFromContext(c))
	if err != nil {
		return h.mapError(c, err, "failed to retry generation")
	}

	return utils.SendSuccess(c, "generation retried", response)
}

// mapError translates service errors into the admin API's status codes.
func (h *AdminSubmissionHandler) mapError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrStaleVersion):
		return utils.SendError(c, fiber.StatusConflict, "submission changed since you loaded it, please refresh")
	case errors.Is(err, service.ErrIllegalTransition):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "action is not allowed in the submission's current state")
	case errors.Is(err, service.ErrReasonRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "a reason is required for this action")
	case errors.Is(err, service.ErrGenerationFailed):
		return utils.SendError(c, fiber.StatusBadGateway, "strategy generation is currently unavailable")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
