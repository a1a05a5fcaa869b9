package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// DeliveryDispatcher performs the actual notification for a submission that
// reached approved/auto_sent. Failures are reported back as delivery errors;
// they never revert submission state.
type DeliveryDispatcher interface {
	Dispatch(ctx context.Context, submission models.Submission) error
}

// LogDeliveryDispatcher is the development default: it logs instead of
// sending.
type LogDeliveryDispatcher struct {
	logger zerolog.Logger
}

// NewLogDeliveryDispatcher constructs a logging dispatcher.
func NewLogDeliveryDispatcher(logger zerolog.Logger) *LogDeliveryDispatcher {
	return &LogDeliveryDispatcher{logger: logger.With().Str("component", "delivery_dispatcher").Logger()}
}

// Dispatch logs the delivery and reports success.
func (d *LogDeliveryDispatcher) Dispatch(ctx context.Context, submission models.Submission) error {
	d.logger.Info().
		Str("reference_id", submission.ReferenceID).
		Str("teacher_email", submission.TeacherEmail).
		Msg("intervention strategies delivered")
	return nil
}

// EmailSender delivers a rendered message to one recipient.
type EmailSender interface {
	Send(ctx context.Context, toEmail, body string) error
}

// EmailDeliveryDispatcher sends the generated strategies to the teacher by
// email.
type EmailDeliveryDispatcher struct {
	sender EmailSender
	logger zerolog.Logger
}

// NewEmailDeliveryDispatcher constructs an email dispatcher.
func NewEmailDeliveryDispatcher(sender EmailSender, logger zerolog.Logger) *EmailDeliveryDispatcher {
	return &EmailDeliveryDispatcher{
		sender: sender,
		logger: logger.With().Str("component", "delivery_dispatcher").Logger(),
	}
}

// Dispatch emails the submission's generated response. A submission without
// generated text is not deliverable; the failure is reported so the caller
// records it and retries after an admin regenerates the response.
func (d *EmailDeliveryDispatcher) Dispatch(ctx context.Context, submission models.Submission) error {
	if submission.AIResponseText == "" {
		return fmt.Errorf("submission %s has no generated response to deliver", submission.ReferenceID)
	}

	body := fmt.Sprintf(
		"Reference: %s\nStudent: %s\n\nSuggested intervention strategies:\n\n%s\n",
		submission.ReferenceID, submission.StudentRef, submission.AIResponseText,
	)

	if err := d.sender.Send(ctx, submission.TeacherEmail, body); err != nil {
		return fmt.Errorf("dispatch %s: %w", submission.ReferenceID, err)
	}

	d.logger.Info().Str("reference_id", submission.ReferenceID).Msg("intervention strategies emailed")
	return nil
}
