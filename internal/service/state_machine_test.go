package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

func TestStateMachineAppliesLegalTransition(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	updated, err := machine.Apply(context.Background(), sub.ID, 1, models.EventApprove, Actor{Type: models.ActorTypeAdmin, ID: "admin-1"}, "")
	require.NoError(t, err)
	require.Equal(t, models.StateApproved, updated.State)
	require.Equal(t, uint64(2), updated.Version)
	require.Equal(t, "admin-1", updated.LastActorID)

	var entries []models.AuditEntry
	require.NoError(t, db.Where("submission_id = ?", sub.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, models.EventApprove, entries[0].Event)
	require.Equal(t, models.StatePendingReview, entries[0].FromState)
	require.Equal(t, models.StateApproved, entries[0].ToState)
}

func TestStateMachineRejectsStaleVersion(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	_, err := machine.Apply(context.Background(), sub.ID, 1, models.EventHold, Actor{Type: models.ActorTypeAdmin, ID: "admin-1"}, "")
	require.NoError(t, err)

	// Second actor still holds version 1. Hold from held is also illegal,
	// but the version mismatch must be reported first.
	_, err = machine.Apply(context.Background(), sub.ID, 1, models.EventHold, Actor{Type: models.ActorTypeAdmin, ID: "admin-2"}, "")
	require.ErrorIs(t, err, ErrStaleVersion)

	var entries []models.AuditEntry
	require.NoError(t, db.Where("submission_id = ?", sub.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
}

func TestStateMachineRejectsIllegalTransition(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())
	sub := seedSubmission(t, db, models.StateCanceled, nil)

	_, err := machine.Apply(context.Background(), sub.ID, 1, models.EventApprove, Actor{Type: models.ActorTypeAdmin, ID: "admin-1"}, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestStateMachineRequiresReasonForCancel(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	_, err := machine.Apply(context.Background(), sub.ID, 1, models.EventCancel, Actor{Type: models.ActorTypeAdmin, ID: "admin-1"}, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = machine.Apply(context.Background(), sub.ID, 1, models.EventEscalate, Actor{Type: models.ActorTypeAdmin, ID: "admin-1"}, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	updated, err := machine.Apply(context.Background(), sub.ID, 1, models.EventCancel, Actor{Type: models.ActorTypeAdmin, ID: "admin-1"}, "parent withdrew the referral")
	require.NoError(t, err)
	require.Equal(t, models.StateCanceled, updated.State)
}

func TestStateMachineReportsUnknownSubmission(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())

	_, err := machine.Apply(context.Background(), 9999, 1, models.EventApprove, SystemActor, "")
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestStateMachineStampsSentAt(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	machine.now = func() time.Time { return fixed }
	sub := seedSubmission(t, db, models.StateAutoSent, nil)

	updated, err := machine.Apply(context.Background(), sub.ID, 1, models.EventDispatchSucceeded, SystemActor, "")
	require.NoError(t, err)
	require.Equal(t, models.StateSent, updated.State)
	require.NotNil(t, updated.SentAt)
	require.Equal(t, fixed, updated.SentAt.UTC())

	var stored models.Submission
	require.NoError(t, db.First(&stored, sub.ID).Error)
	require.NotNil(t, stored.SentAt)
}
