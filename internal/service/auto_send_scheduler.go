package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/observability"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

const defaultSchedulerBatchSize = 100

// AutoSendScheduler periodically promotes pending submissions whose review
// window has elapsed and retries deliveries that failed earlier. It never
// fights an admin: a lost conditional write means the row is simply skipped.
type AutoSendScheduler struct {
	submissions repository.SubmissionRepository
	machine     *StateMachine
	runner      *dispatchRunner
	flags       FlagService
	events      EventStream
	logger      zerolog.Logger
	interval    time.Duration
	batchSize   int
	now         func() time.Time
}

// NewAutoSendScheduler constructs the scheduler.
func NewAutoSendScheduler(
	submissions repository.SubmissionRepository,
	machine *StateMachine,
	dispatcher DeliveryDispatcher,
	flags FlagService,
	events EventStream,
	interval time.Duration,
	logger zerolog.Logger,
) *AutoSendScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	componentLogger := logger.With().Str("component", "auto_send_scheduler").Logger()

	return &AutoSendScheduler{
		submissions: submissions,
		machine:     machine,
		runner:      newDispatchRunner(submissions, machine, dispatcher, events, logger),
		flags:       flags,
		events:      events,
		logger:      componentLogger,
		interval:    interval,
		batchSize:   defaultSchedulerBatchSize,
		now:         time.Now,
	}
}

// Run blocks on a fixed-interval ticker until ctx is cancelled. Intended to
// run on its own goroutine from the composition root.
func (s *AutoSendScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("auto-send scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("auto-send scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick executes one scheduler pass. An error on one row never aborts the
// rest of the batch.
func (s *AutoSendScheduler) Tick(ctx context.Context) {
	observability.SchedulerTicks().Inc()

	if s.flags != nil && !s.flags.IsEnabled(ctx, models.FlagAutoSendEnabled) {
		s.logger.Debug().Msg("auto-send disabled by feature flag, skipping tick")
		return
	}

	s.retryPendingDispatches(ctx)
	s.promoteDueSubmissions(ctx)
}

// retryPendingDispatches re-attempts delivery for rows stuck in
// approved/auto_sent from earlier failed dispatches. It runs before
// promotion so a row that fails in this tick waits for the next one.
func (s *AutoSendScheduler) retryPendingDispatches(ctx context.Context) {
	awaiting, err := s.submissions.FindAwaitingDispatch(ctx, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query submissions awaiting dispatch")
		return
	}

	for _, submission := range awaiting {
		s.runner.run(ctx, submission, SystemActor)
	}
}

// promoteDueSubmissions moves every pending_review row past its deadline to
// auto_sent and dispatches it.
func (s *AutoSendScheduler) promoteDueSubmissions(ctx context.Context) {
	due, err := s.submissions.FindDueForAutoSend(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query due submissions")
		return
	}

	for _, submission := range due {
		promoted, err := s.machine.Apply(ctx, submission.ID, submission.Version, models.EventAutoSendTimeout, SystemActor, "")
		if err != nil {
			if errors.Is(err, ErrStaleVersion) || errors.Is(err, ErrIllegalTransition) {
				// An admin acted between the scan and the write; their
				// decision stands.
				s.logger.Debug().
					Str("reference_id", submission.ReferenceID).
					Msg("skipping row transitioned by another actor")
				continue
			}
			s.logger.Error().Err(err).
				Str("reference_id", submission.ReferenceID).
				Msg("auto-send promotion failed")
			continue
		}

		observability.AutoSendPromoted().Inc()
		if s.events != nil {
			s.events.Publish(ctx, NewPipelineEvent(promoted, string(models.EventAutoSendTimeout)))
		}

		s.runner.run(ctx, promoted, SystemActor)
	}
}
