package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
	"github.com/ReMyndassessments/concern2care-api/pkg/ai"
)

// AdminReviewService exposes the human-initiated transitions. Every action
// carries the version the admin last observed; a stale version is surfaced
// as ErrStaleVersion so the UI can ask for a refresh instead of silently
// overwriting newer data.
type AdminReviewService interface {
	List(ctx context.Context, filter dto.SubmissionListFilter) (dto.SubmissionListResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	AuditTrail(ctx context.Context, id uint) ([]dto.AuditEntryResponse, error)
	Approve(ctx context.Context, id uint, version uint64, adminID string) (dto.SubmissionResponse, error)
	Hold(ctx context.Context, id uint, version uint64, adminID string) (dto.SubmissionResponse, error)
	Cancel(ctx context.Context, id uint, version uint64, reason, adminID string) (dto.SubmissionResponse, error)
	Escalate(ctx context.Context, id uint, version uint64, reason, adminID string) (dto.SubmissionResponse, error)
	ResolveEscalation(ctx context.Context, id uint, version uint64, decision, reason, adminID string) (dto.SubmissionResponse, error)
	RetryGeneration(ctx context.Context, id uint, adminID string) (dto.SubmissionResponse, error)
}

type adminReviewService struct {
	submissions repository.SubmissionRepository
	audits      repository.AuditRepository
	machine     *StateMachine
	runner      *dispatchRunner
	generator   ai.Generator
	events      EventStream
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewAdminReviewService constructs the admin review workflow.
func NewAdminReviewService(
	submissions repository.SubmissionRepository,
	audits repository.AuditRepository,
	machine *StateMachine,
	dispatcher DeliveryDispatcher,
	generator ai.Generator,
	events EventStream,
	validate *validator.Validate,
	logger zerolog.Logger,
) AdminReviewService {
	return &adminReviewService{
		submissions: submissions,
		audits:      audits,
		machine:     machine,
		runner:      newDispatchRunner(submissions, machine, dispatcher, events, logger),
		generator:   generator,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "admin_review_service").Logger(),
		tracer:      otel.Tracer("github.com/ReMyndassessments/concern2care-api/internal/service/admin_review"),
	}
}

func (s *adminReviewService) List(ctx context.Context, filter dto.SubmissionListFilter) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.SubmissionListResponse{}, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	repoFilter := repository.SubmissionFilter{
		Classification: filter.Classification,
		Page:           page,
		PageSize:       pageSize,
	}
	if filter.State != nil {
		state := models.SubmissionState(*filter.State)
		repoFilter.State = &state
	}

	submissions, total, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	return dto.SubmissionListResponse{
		Submissions: dto.NewSubmissionResponseSlice(submissions),
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
	}, nil
}

func (s *adminReviewService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *adminReviewService) AuditTrail(ctx context.Context, id uint) ([]dto.AuditEntryResponse, error) {
	if _, err := s.submissions.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	entries, err := s.audits.ListBySubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewAuditEntryResponseSlice(entries), nil
}

func (s *adminReviewService) Approve(ctx context.Context, id uint, version uint64, adminID string) (dto.SubmissionResponse, error) {
	return s.applyAndDispatch(ctx, id, version, models.EventApprove, "", adminID)
}

func (s *adminReviewService) Hold(ctx context.Context, id uint, version uint64, adminID string) (dto.SubmissionResponse, error) {
	return s.apply(ctx, id, version, models.EventHold, "", adminID)
}

func (s *adminReviewService) Cancel(ctx context.Context, id uint, version uint64, reason, adminID string) (dto.SubmissionResponse, error) {
	return s.apply(ctx, id, version, models.EventCancel, reason, adminID)
}

func (s *adminReviewService) Escalate(ctx context.Context, id uint, version uint64, reason, adminID string) (dto.SubmissionResponse, error) {
	return s.apply(ctx, id, version, models.EventEscalate, reason, adminID)
}

func (s *adminReviewService) ResolveEscalation(ctx context.Context, id uint, version uint64, decision, reason, adminID string) (dto.SubmissionResponse, error) {
	switch decision {
	case "approve":
		return s.applyAndDispatch(ctx, id, version, models.EventResolveApprove, reason, adminID)
	case "cancel":
		return s.apply(ctx, id, version, models.EventResolveCancel, reason, adminID)
	default:
		return dto.SubmissionResponse{}, ErrIllegalTransition
	}
}

// RetryGeneration re-runs the text-generation collaborator for a submission
// whose earlier generation failed. Terminal submissions are immutable and
// rejected. Retries are not limited: generation failure is an availability
// problem, not a policy violation.
func (s *adminReviewService) RetryGeneration(ctx context.Context, id uint, adminID string) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "admin.retry_generation", trace.WithAttributes(
		attribute.String("admin_id", adminID),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	if submission.IsTerminal() {
		return dto.SubmissionResponse{}, ErrIllegalTransition
	}
	if s.generator == nil {
		return dto.SubmissionResponse{}, ErrGenerationFailed
	}

	result, err := s.generator.Generate(ctx, ai.StrategyInput{
		StudentRef:  submission.StudentRef,
		ConcernText: submission.ConcernText,
		Urgent:      submission.IsUrgent(),
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Uint("submission_id", id).Str("admin_id", adminID).Msg("generation retry failed")
		return dto.SubmissionResponse{}, ErrGenerationFailed
	}

	if err := s.submissions.UpdateGeneratedResponse(ctx, id, result.Text()); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission.AIResponseText = result.Text()
	s.logger.Info().Uint("submission_id", id).Str("admin_id", adminID).Msg("generation retried")
	return dto.NewSubmissionResponse(submission), nil
}

// apply runs one admin transition and publishes the resulting event.
func (s *adminReviewService) apply(ctx context.Context, id uint, version uint64, event models.TransitionEvent, reason, adminID string) (dto.SubmissionResponse, error) {
	actor := Actor{Type: models.ActorTypeAdmin, ID: adminID}
	updated, err := s.machine.Apply(ctx, id, version, event, actor, reason)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.events != nil {
		s.events.Publish(ctx, NewPipelineEvent(updated, string(event)))
	}

	return dto.NewSubmissionResponse(updated), nil
}

// applyAndDispatch additionally attempts delivery, mirroring the scheduler's
// dispatch semantics for transitions into approved.
func (s *adminReviewService) applyAndDispatch(ctx context.Context, id uint, version uint64, event models.TransitionEvent, reason, adminID string) (dto.SubmissionResponse, error) {
	response, err := s.apply(ctx, id, version, event, reason, adminID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	updated, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return response, nil
	}
	s.runner.run(ctx, updated, Actor{Type: models.ActorTypeAdmin, ID: adminID})

	final, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return response, nil
	}
	return dto.NewSubmissionResponse(final), nil
}
