package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named in-memory database keeps the connection pool on one store
	// while isolating tests from each other.
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Submission{}, &models.AuditEntry{}, &models.FeatureFlag{}))
	return db
}

func newPendingSubmission(t *testing.T, db *gorm.DB, deadline time.Time) models.Submission {
	t.Helper()
	submission := models.Submission{
		ReferenceID:    uuid.NewString(),
		TeacherEmail:   "teacher@example.com",
		StudentRef:     "student-7",
		ConcernText:    "struggles with reading comprehension",
		Classification: models.ClassificationNormal,
		State:          models.StatePendingReview,
		ReviewDeadline: &deadline,
		Version:        1,
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func TestApplyTransitionBumpsVersionAndWritesAudit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	sub := newPendingSubmission(t, db, time.Now().Add(30*time.Minute))

	sub.State = models.StateApproved
	sub.LastActorType = models.ActorTypeAdmin
	sub.LastActorID = "admin-1"
	entry := &models.AuditEntry{
		SubmissionID: sub.ID,
		FromState:    models.StatePendingReview,
		ToState:      models.StateApproved,
		Event:        models.EventApprove,
		ActorType:    models.ActorTypeAdmin,
		ActorID:      "admin-1",
	}

	require.NoError(t, repo.ApplyTransition(context.Background(), &sub, 1, entry))
	require.Equal(t, uint64(2), sub.Version)

	stored, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateApproved, stored.State)
	require.Equal(t, uint64(2), stored.Version)
	require.Equal(t, "admin-1", stored.LastActorID)

	var audits []models.AuditEntry
	require.NoError(t, db.Where("submission_id = ?", sub.ID).Find(&audits).Error)
	require.Len(t, audits, 1)
}

func TestApplyTransitionStaleVersionWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	sub := newPendingSubmission(t, db, time.Now().Add(30*time.Minute))

	// First transition wins.
	winner := sub
	winner.State = models.StateCanceled
	winner.LastActorType = models.ActorTypeAdmin
	require.NoError(t, repo.ApplyTransition(context.Background(), &winner, 1, &models.AuditEntry{
		SubmissionID: sub.ID, FromState: models.StatePendingReview, ToState: models.StateCanceled,
		Event: models.EventCancel, ActorType: models.ActorTypeAdmin, Reason: "duplicate",
	}))

	// Loser used the version it read before the winner acted.
	loser := sub
	loser.State = models.StateAutoSent
	loser.LastActorType = models.ActorTypeSystem
	err := repo.ApplyTransition(context.Background(), &loser, 1, &models.AuditEntry{
		SubmissionID: sub.ID, FromState: models.StatePendingReview, ToState: models.StateAutoSent,
		Event: models.EventAutoSendTimeout, ActorType: models.ActorTypeSystem,
	})
	require.ErrorIs(t, err, ErrVersionConflict)

	stored, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateCanceled, stored.State)
	require.Equal(t, uint64(2), stored.Version)

	// Exactly one audit entry: the rejected transition must not log.
	var total int64
	require.NoError(t, db.Model(&models.AuditEntry{}).Where("submission_id = ?", sub.ID).Count(&total).Error)
	require.Equal(t, int64(1), total)

	// Retrying with the same stale version stays rejected.
	err = repo.ApplyTransition(context.Background(), &loser, 1, &models.AuditEntry{SubmissionID: sub.ID})
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestFindDueForAutoSend(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	now := time.Now()

	due := newPendingSubmission(t, db, now.Add(-time.Minute))
	_ = newPendingSubmission(t, db, now.Add(20*time.Minute))

	urgent := models.Submission{
		ReferenceID:    uuid.NewString(),
		TeacherEmail:   "teacher@example.com",
		StudentRef:     "student-9",
		ConcernText:    "mentioned self harm",
		Classification: models.ClassificationUrgent,
		State:          models.StateEscalated,
		Version:        1,
	}
	require.NoError(t, db.Create(&urgent).Error)

	matches, err := repo.FindDueForAutoSend(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, due.ID, matches[0].ID)
}

func TestFindDueForAutoSendSkipsRowsMovedOut(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	now := time.Now()

	sub := newPendingSubmission(t, db, now.Add(-time.Minute))
	sub.State = models.StateCanceled
	require.NoError(t, repo.ApplyTransition(context.Background(), &sub, 1, &models.AuditEntry{
		SubmissionID: sub.ID, FromState: models.StatePendingReview, ToState: models.StateCanceled,
		Event: models.EventCancel, ActorType: models.ActorTypeAdmin, Reason: "duplicate",
	}))

	matches, err := repo.FindDueForAutoSend(context.Background(), now, 50)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFindAwaitingDispatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	sub := newPendingSubmission(t, db, time.Now().Add(-time.Minute))
	sub.State = models.StateAutoSent
	sub.LastActorType = models.ActorTypeSystem
	require.NoError(t, repo.ApplyTransition(context.Background(), &sub, 1, &models.AuditEntry{
		SubmissionID: sub.ID, FromState: models.StatePendingReview, ToState: models.StateAutoSent,
		Event: models.EventAutoSendTimeout, ActorType: models.ActorTypeSystem,
	}))

	matches, err := repo.FindAwaitingDispatch(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, sub.ID, matches[0].ID)
}

func TestRecordDispatchFailureLeavesStateAndVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	sub := newPendingSubmission(t, db, time.Now().Add(-time.Minute))

	require.NoError(t, repo.RecordDispatchFailure(context.Background(), sub.ID, 1, "smtp refused"))

	stored, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatePendingReview, stored.State)
	require.Equal(t, uint64(1), stored.Version)
	require.Equal(t, 1, stored.DispatchAttempts)
	require.Equal(t, "smtp refused", stored.LastDispatchError)
}

func TestListFiltersByState(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	_ = newPendingSubmission(t, db, time.Now().Add(30*time.Minute))
	escalated := models.Submission{
		ReferenceID:    uuid.NewString(),
		TeacherEmail:   "other@example.com",
		StudentRef:     "student-2",
		ConcernText:    "mentioned a weapon",
		Classification: models.ClassificationUrgent,
		State:          models.StateEscalated,
		Version:        1,
	}
	require.NoError(t, db.Create(&escalated).Error)

	state := models.StateEscalated
	rows, total, err := repo.List(context.Background(), SubmissionFilter{State: &state, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	require.Equal(t, escalated.ReferenceID, rows[0].ReferenceID)
}

func TestGetByReference(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	sub := newPendingSubmission(t, db, time.Now().Add(30*time.Minute))

	found, err := repo.GetByReference(context.Background(), sub.ReferenceID)
	require.NoError(t, err)
	require.Equal(t, sub.ID, found.ID)

	_, err = repo.GetByReference(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
