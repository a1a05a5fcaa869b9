package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/observability"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

// dispatchRunner drives a promoted submission through delivery and the
// final dispatch_succeeded transition. Shared by the scheduler and the admin
// review service so both paths have identical failure semantics.
type dispatchRunner struct {
	submissions repository.SubmissionRepository
	machine     *StateMachine
	dispatcher  DeliveryDispatcher
	events      EventStream
	logger      zerolog.Logger
}

func newDispatchRunner(
	submissions repository.SubmissionRepository,
	machine *StateMachine,
	dispatcher DeliveryDispatcher,
	events EventStream,
	logger zerolog.Logger,
) *dispatchRunner {
	return &dispatchRunner{
		submissions: submissions,
		machine:     machine,
		dispatcher:  dispatcher,
		events:      events,
		logger:      logger.With().Str("component", "dispatch_runner").Logger(),
	}
}

// run attempts delivery for a submission in approved/auto_sent. A failed
// dispatch is recorded on the row and left for the next scheduler tick; the
// submission state is never reverted.
func (r *dispatchRunner) run(ctx context.Context, submission models.Submission, actor Actor) {
	if !submission.AwaitingDispatch() {
		return
	}

	if err := r.dispatcher.Dispatch(ctx, submission); err != nil {
		observability.DispatchFailures().Inc()
		r.logger.Warn().Err(err).
			Str("reference_id", submission.ReferenceID).
			Int("attempt", submission.DispatchAttempts+1).
			Msg("dispatch failed, will retry on next tick")
		if recordErr := r.submissions.RecordDispatchFailure(ctx, submission.ID, submission.DispatchAttempts+1, err.Error()); recordErr != nil {
			r.logger.Error().Err(recordErr).Str("reference_id", submission.ReferenceID).Msg("failed to record dispatch failure")
		}
		return
	}

	updated, err := r.machine.Apply(ctx, submission.ID, submission.Version, models.EventDispatchSucceeded, actor, "")
	if err != nil {
		// Stale here means another worker already confirmed delivery.
		r.logger.Warn().Err(err).
			Str("reference_id", submission.ReferenceID).
			Msg("could not record dispatch success")
		return
	}

	if r.events != nil {
		r.events.Publish(ctx, NewPipelineEvent(updated, string(models.EventDispatchSucceeded)))
	}
}
