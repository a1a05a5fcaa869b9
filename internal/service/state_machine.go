package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/observability"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates an unknown submission id.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrStaleVersion indicates the submission changed since the caller last
	// read it. Recoverable: re-read and decide whether to retry.
	ErrStaleVersion = errors.New("submission changed since it was loaded")
	// ErrIllegalTransition indicates the requested event has no edge from the
	// current state. Never retried; points at a client or race bug.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrReasonRequired indicates a cancel or escalate arrived without a reason.
	ErrReasonRequired = errors.New("a reason is required for this action")
)

// Actor identifies who requested a transition.
type Actor struct {
	Type string
	ID   string
}

// SystemActor is the scheduler/dispatch identity.
var SystemActor = Actor{Type: models.ActorTypeSystem, ID: "scheduler"}

// StateMachine is the single authority for whether a requested transition is
// legal and for applying it atomically. Both the scheduler and the admin
// service go through Apply; they coordinate only via the versioned
// conditional write underneath.
type StateMachine struct {
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStateMachine constructs the transition authority.
func NewStateMachine(submissions repository.SubmissionRepository, logger zerolog.Logger) *StateMachine {
	return &StateMachine{
		submissions: submissions,
		logger:      logger.With().Str("component", "state_machine").Logger(),
		now:         time.Now,
	}
}

// reasonRequired lists events whose audit entry must carry a reason.
func reasonRequired(event models.TransitionEvent) bool {
	switch event {
	case models.EventCancel, models.EventEscalate, models.EventResolveCancel:
		return true
	default:
		return false
	}
}

// Apply validates and persists one transition. On success it returns the
// updated submission carrying the fresh version; exactly one audit entry is
// written. Dispatch is the caller's responsibility after a transition into
// approved/auto_sent.
func (m *StateMachine) Apply(ctx context.Context, id uint, expectedVersion uint64, event models.TransitionEvent, actor Actor, reason string) (models.Submission, error) {
	if reasonRequired(event) && reason == "" {
		return models.Submission{}, ErrReasonRequired
	}

	submission, err := m.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.Transitions().WithLabelValues(string(event), "not_found").Inc()
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	next, legal := models.NextState(submission.State, event)
	if !legal {
		// Report against the version check first: a stale caller asking for a
		// now-impossible transition should be told to refresh, not that it hit
		// a programming error.
		if submission.Version != expectedVersion {
			observability.Transitions().WithLabelValues(string(event), "stale").Inc()
			return models.Submission{}, ErrStaleVersion
		}
		observability.Transitions().WithLabelValues(string(event), "illegal").Inc()
		m.logger.Error().
			Uint("submission_id", id).
			Str("state", string(submission.State)).
			Str("event", string(event)).
			Msg("illegal transition requested")
		return models.Submission{}, ErrIllegalTransition
	}

	fromState := submission.State
	submission.State = next
	submission.LastActorType = actor.Type
	submission.LastActorID = actor.ID
	if next == models.StateSent {
		sentAt := m.now().UTC()
		submission.SentAt = &sentAt
	}

	entry := &models.AuditEntry{
		SubmissionID: submission.ID,
		FromState:    fromState,
		ToState:      next,
		Event:        event,
		ActorType:    actor.Type,
		ActorID:      actor.ID,
		Reason:       reason,
	}

	if err := m.submissions.ApplyTransition(ctx, &submission, expectedVersion, entry); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			observability.Transitions().WithLabelValues(string(event), "stale").Inc()
			return models.Submission{}, ErrStaleVersion
		}
		observability.Transitions().WithLabelValues(string(event), "error").Inc()
		return models.Submission{}, err
	}

	observability.Transitions().WithLabelValues(string(event), "applied").Inc()
	m.logger.Info().
		Uint("submission_id", submission.ID).
		Str("from", string(fromState)).
		Str("to", string(next)).
		Str("event", string(event)).
		Str("actor_type", actor.Type).
		Msg("transition applied")

	return submission, nil
}
