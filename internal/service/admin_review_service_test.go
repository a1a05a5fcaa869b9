package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
	"github.com/ReMyndassessments/concern2care-api/pkg/ai"
)

func newTestAdminService(t *testing.T, db *gorm.DB, dispatcher DeliveryDispatcher, generator ai.Generator) AdminReviewService {
	t.Helper()
	repo := repository.NewSubmissionRepository(db)
	machine := NewStateMachine(repo, testLogger())
	return NewAdminReviewService(repo, repository.NewAuditRepository(db), machine, dispatcher, generator, nil, validator.New(), testLogger())
}

func TestAdminApproveDispatchesImmediately(t *testing.T) {
	db := setupServiceDB(t)
	dispatcher := &stubDispatcher{}
	svc := newTestAdminService(t, db, dispatcher, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	resp, err := svc.Approve(context.Background(), sub.ID, 1, "admin-1")
	require.NoError(t, err)
	require.Equal(t, string(models.StateSent), resp.State)
	require.NotNil(t, resp.SentAt)
	require.Equal(t, []string{sub.ReferenceID}, dispatcher.dispatched)
}

func TestAdminApproveSurvivesDispatchFailure(t *testing.T) {
	db := setupServiceDB(t)
	dispatcher := &stubDispatcher{failuresLeft: 1}
	svc := newTestAdminService(t, db, dispatcher, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	// Approval itself succeeds; the failed delivery stays queued for the
	// scheduler's retry pass.
	resp, err := svc.Approve(context.Background(), sub.ID, 1, "admin-1")
	require.NoError(t, err)
	require.Equal(t, string(models.StateApproved), resp.State)
	require.Equal(t, 1, resp.DispatchAttempts)
	require.Contains(t, resp.LastDispatchError, "smtp unavailable")
}

func TestAdminHoldPausesTimedPath(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestAdminService(t, db, &stubDispatcher{}, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	resp, err := svc.Hold(context.Background(), sub.ID, 1, "admin-1")
	require.NoError(t, err)
	require.Equal(t, string(models.StateHeld), resp.State)
	require.Equal(t, uint64(2), resp.Version)
}

func TestAdminCancelRequiresReason(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestAdminService(t, db, &stubDispatcher{}, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	_, err := svc.Cancel(context.Background(), sub.ID, 1, "", "admin-1")
	require.ErrorIs(t, err, ErrReasonRequired)

	resp, err := svc.Cancel(context.Background(), sub.ID, 1, "duplicate of an earlier referral", "admin-1")
	require.NoError(t, err)
	require.Equal(t, string(models.StateCanceled), resp.State)
}

func TestAdminStaleVersionRejected(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestAdminService(t, db, &stubDispatcher{}, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	_, err := svc.Hold(context.Background(), sub.ID, 1, "admin-1")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), sub.ID, 1, "stale attempt", "admin-2")
	require.ErrorIs(t, err, ErrStaleVersion)
}

func TestAdminEscalateAndResolveApprove(t *testing.T) {
	db := setupServiceDB(t)
	dispatcher := &stubDispatcher{}
	svc := newTestAdminService(t, db, dispatcher, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	resp, err := svc.Escalate(context.Background(), sub.ID, 1, "needs counselor review", "admin-1")
	require.NoError(t, err)
	require.Equal(t, string(models.StateEscalated), resp.State)

	resp, err = svc.ResolveEscalation(context.Background(), sub.ID, resp.Version, "approve", "counselor cleared delivery", "admin-2")
	require.NoError(t, err)
	require.Equal(t, string(models.StateSent), resp.State)
	require.Equal(t, []string{sub.ReferenceID}, dispatcher.dispatched)
}

func TestAdminResolveEscalationCancel(t *testing.T) {
	db := setupServiceDB(t)
	dispatcher := &stubDispatcher{}
	svc := newTestAdminService(t, db, dispatcher, nil)
	sub := seedSubmission(t, db, models.StateEscalated, nil)

	resp, err := svc.ResolveEscalation(context.Background(), sub.ID, 1, "cancel", "handled by the counselor directly", "admin-1")
	require.NoError(t, err)
	require.Equal(t, string(models.StateCanceled), resp.State)
	require.Zero(t, dispatcher.calls)

	_, err = svc.ResolveEscalation(context.Background(), sub.ID, resp.Version, "archive", "bad decision value", "admin-1")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAdminListFiltersByState(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestAdminService(t, db, &stubDispatcher{}, nil)
	deadline := time.Now().Add(30 * time.Minute)
	seedSubmission(t, db, models.StatePendingReview, &deadline)
	seedSubmission(t, db, models.StatePendingReview, &deadline)
	seedSubmission(t, db, models.StateCanceled, nil)

	state := string(models.StatePendingReview)
	resp, err := svc.List(context.Background(), dto.SubmissionListFilter{State: &state})
	require.NoError(t, err)
	require.Equal(t, int64(2), resp.Total)
	require.Len(t, resp.Submissions, 2)
	require.Equal(t, 1, resp.Page)
	require.Equal(t, 50, resp.PageSize)
}

func TestAdminAuditTrail(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestAdminService(t, db, &stubDispatcher{}, nil)
	deadline := time.Now().Add(30 * time.Minute)
	sub := seedSubmission(t, db, models.StatePendingReview, &deadline)

	_, err := svc.Hold(context.Background(), sub.ID, 1, "admin-1")
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), sub.ID, 2, "family moved away", "admin-1")
	require.NoError(t, err)

	trail, err := svc.AuditTrail(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, string(models.EventHold), trail[0].Event)
	require.Equal(t, string(models.EventCancel), trail[1].Event)
	require.Equal(t, "family moved away", trail[1].Reason)

	_, err = svc.AuditTrail(context.Background(), 9999)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestAdminRetryGeneration(t *testing.T) {
	db := setupServiceDB(t)
	generator := &stubGenerator{result: ai.StrategyResult{
		Summary:    "Regenerated plan",
		Strategies: []string{"Daily check-in with the student"},
	}}
	svc := newTestAdminService(t, db, &stubDispatcher{}, generator)

	sub := seedSubmission(t, db, models.StateHeld, nil)
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", sub.ID).Update("ai_response_text", "").Error)

	resp, err := svc.RetryGeneration(context.Background(), sub.ID, "admin-1")
	require.NoError(t, err)
	require.Contains(t, resp.AIResponseText, "Daily check-in")

	var stored models.Submission
	require.NoError(t, db.First(&stored, sub.ID).Error)
	require.Contains(t, stored.AIResponseText, "Daily check-in")
	// Regeneration is not a transition and never bumps the version.
	require.Equal(t, uint64(1), stored.Version)
}

func TestAdminRetryGenerationRejectsTerminal(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestAdminService(t, db, &stubDispatcher{}, &stubGenerator{})
	sub := seedSubmission(t, db, models.StateCanceled, nil)

	_, err := svc.RetryGeneration(context.Background(), sub.ID, "admin-1")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAdminRetryGenerationMapsProviderFailure(t *testing.T) {
	db := setupServiceDB(t)
	generator := &stubGenerator{err: errors.New("provider down")}
	svc := newTestAdminService(t, db, &stubDispatcher{}, generator)
	sub := seedSubmission(t, db, models.StateHeld, nil)

	_, err := svc.RetryGeneration(context.Background(), sub.ID, "admin-1")
	require.ErrorIs(t, err, ErrGenerationFailed)
}
