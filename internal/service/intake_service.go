package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/classifier"
	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/observability"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
	"github.com/ReMyndassessments/concern2care-api/pkg/ai"
)

var (
	// ErrIntakeClosed indicates the intake feature flag is off.
	ErrIntakeClosed = errors.New("referral intake is currently closed")
	// ErrIntakeDuplicate indicates an identical referral arrived recently.
	ErrIntakeDuplicate = errors.New("duplicate referral submission")
	// ErrGenerationFailed indicates the text-generation collaborator was
	// unavailable. The submission keeps its review state with empty AI text.
	ErrGenerationFailed = errors.New("strategy generation unavailable")
	// ErrReferralNotFound indicates an unknown referral reference.
	ErrReferralNotFound = errors.New("referral not found")
)

// IntakeService is the public referral entry point.
type IntakeService interface {
	Submit(ctx context.Context, req dto.ReferralRequest) (dto.ReferralResponse, error)
	Status(ctx context.Context, referenceID string) (dto.ReferralResponse, error)
}

type intakeService struct {
	submissions  repository.SubmissionRepository
	classifier   *classifier.Classifier
	generator    ai.Generator
	flags        FlagService
	events       EventStream
	cache        *redis.Client
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	reviewWindow time.Duration
	dedupeTTL    time.Duration
	now          func() time.Time
}

// NewIntakeService constructs the intake workflow.
func NewIntakeService(
	submissions repository.SubmissionRepository,
	clf *classifier.Classifier,
	generator ai.Generator,
	flags FlagService,
	events EventStream,
	cache *redis.Client,
	validate *validator.Validate,
	reviewWindow time.Duration,
	dedupeTTL time.Duration,
	logger zerolog.Logger,
) IntakeService {
	if reviewWindow <= 0 {
		reviewWindow = 30 * time.Minute
	}
	if dedupeTTL <= 0 {
		dedupeTTL = 5 * time.Minute
	}
	return &intakeService{
		submissions:  submissions,
		classifier:   clf,
		generator:    generator,
		flags:        flags,
		events:       events,
		cache:        cache,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "intake_service").Logger(),
		tracer:       otel.Tracer("github.com/ReMyndassessments/concern2care-api/internal/service/intake"),
		reviewWindow: reviewWindow,
		dedupeTTL:    dedupeTTL,
		now:          time.Now,
	}
}

// Submit validates, classifies, and persists one referral. Classification
// runs inline so the row is created on the correct branch: urgent concerns
// are born escalated and never see the timed path.
func (s *intakeService) Submit(ctx context.Context, req dto.ReferralRequest) (dto.ReferralResponse, error) {
	ctx, span := s.tracer.Start(ctx, "intake.submit")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.ReferralResponse{}, err
	}

	if s.flags != nil && !s.flags.IsEnabled(ctx, models.FlagIntakeOpen) {
		observability.Intakes().WithLabelValues("none", "closed").Inc()
		return dto.ReferralResponse{}, ErrIntakeClosed
	}

	concern := strings.TrimSpace(s.sanitizer.Sanitize(req.ConcernText))
	if concern == "" {
		return dto.ReferralResponse{}, fmt.Errorf("concern text empty after sanitization")
	}

	checksum := computeChecksum(req.TeacherEmail, req.StudentRef, concern)
	span.SetAttributes(attribute.String("intake.checksum", checksum))

	if s.cache != nil {
		key := fmt.Sprintf("c2c:intake:dedupe:%s", checksum)
		ok, err := s.cache.SetNX(ctx, key, 1, s.dedupeTTL).Result()
		if err != nil {
			span.RecordError(err)
			return dto.ReferralResponse{}, err
		}
		if !ok {
			observability.Intakes().WithLabelValues("none", "duplicate").Inc()
			return dto.ReferralResponse{}, ErrIntakeDuplicate
		}
	}

	result := s.classifier.Classify(concern)
	span.SetAttributes(attribute.Bool("intake.urgent", result.Urgent))

	now := s.now().UTC()
	submission := models.Submission{
		ReferenceID:  uuid.NewString(),
		TeacherEmail: strings.ToLower(strings.TrimSpace(req.TeacherEmail)),
		StudentRef:   strings.TrimSpace(req.StudentRef),
		ConcernText:  concern,
		Version:      1,
		CreatedAt:    now,
	}

	if result.Urgent {
		// Urgent content must always reach a human before any delivery:
		// no review deadline, no timed path.
		submission.Classification = models.ClassificationUrgent
		submission.State = models.StateEscalated
		if terms, err := json.Marshal(result.MatchedTerms); err == nil {
			submission.MatchedTerms = datatypes.JSON(terms)
		}
	} else {
		deadline := now.Add(s.reviewWindow)
		submission.Classification = models.ClassificationNormal
		submission.State = models.StatePendingReview
		submission.ReviewDeadline = &deadline
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		observability.Intakes().WithLabelValues(submission.Classification, "error").Inc()
		return dto.ReferralResponse{}, err
	}

	s.generateResponse(ctx, &submission)

	if s.events != nil {
		eventName := "created"
		if submission.IsUrgent() {
			eventName = "escalated_at_intake"
		}
		s.events.Publish(ctx, NewPipelineEvent(submission, eventName))
	}

	observability.Intakes().WithLabelValues(submission.Classification, "accepted").Inc()
	s.logger.Info().
		Str("reference_id", submission.ReferenceID).
		Str("classification", submission.Classification).
		Str("state", string(submission.State)).
		Msg("referral accepted")

	return dto.ReferralResponse{
		ReferenceID: submission.ReferenceID,
		State:       string(submission.State),
		Urgent:      submission.IsUrgent(),
	}, nil
}

// Status resolves the opaque reference a teacher received at intake. The
// response carries state and urgency only, never the concern or AI text.
func (s *intakeService) Status(ctx context.Context, referenceID string) (dto.ReferralResponse, error) {
	referenceID = strings.TrimSpace(referenceID)
	if _, err := uuid.Parse(referenceID); err != nil {
		return dto.ReferralResponse{}, ErrReferralNotFound
	}

	submission, err := s.submissions.GetByReference(ctx, referenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReferralResponse{}, ErrReferralNotFound
		}
		return dto.ReferralResponse{}, err
	}

	return dto.ReferralResponse{
		ReferenceID: submission.ReferenceID,
		State:       string(submission.State),
		Urgent:      submission.IsUrgent(),
	}, nil
}

// generateResponse attempts AI generation once at intake. Failure is
// tolerated: the submission stays in its review state with empty text,
// eligible for admin-triggered retry.
func (s *intakeService) generateResponse(ctx context.Context, submission *models.Submission) {
	if s.generator == nil {
		return
	}

	result, err := s.generator.Generate(ctx, ai.StrategyInput{
		StudentRef:  submission.StudentRef,
		ConcernText: submission.ConcernText,
		Urgent:      submission.IsUrgent(),
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("reference_id", submission.ReferenceID).
			Msg("strategy generation failed at intake")
		return
	}

	text := result.Text()
	if err := s.submissions.UpdateGeneratedResponse(ctx, submission.ID, text); err != nil {
		s.logger.Warn().Err(err).
			Str("reference_id", submission.ReferenceID).
			Msg("failed to store generated response")
		return
	}
	submission.AIResponseText = text
}

func computeChecksum(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(strings.TrimSpace(strings.ToLower(part))))
		hasher.Write([]byte("|"))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
