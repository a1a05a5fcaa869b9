package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Submission{}, &models.AuditEntry{}, &models.FeatureFlag{}))
	return db
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func seedSubmission(t *testing.T, db *gorm.DB, state models.SubmissionState, deadline *time.Time) models.Submission {
	t.Helper()
	submission := models.Submission{
		ReferenceID:    uuid.NewString(),
		TeacherEmail:   "teacher@example.com",
		StudentRef:     "student-42",
		ConcernText:    "frequently distracted during independent work",
		AIResponseText: "Strategy 1: seat near the front.",
		Classification: models.ClassificationNormal,
		State:          state,
		ReviewDeadline: deadline,
		Version:        1,
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

// stubGenerator returns canned strategies or a configured error.
type stubGenerator struct {
	result ai.StrategyResult
	err    error
	calls  int
}

func (g *stubGenerator) Generate(ctx context.Context, input ai.StrategyInput) (ai.StrategyResult, error) {
	g.calls++
	if g.err != nil {
		return ai.StrategyResult{}, g.err
	}
	return g.result, nil
}

// stubDispatcher records dispatch attempts and can fail a fixed number of
// times before succeeding.
type stubDispatcher struct {
	failuresLeft int
	calls        int
	dispatched   []string
}

func (d *stubDispatcher) Dispatch(ctx context.Context, submission models.Submission) error {
	d.calls++
	if d.failuresLeft > 0 {
		d.failuresLeft--
		return fmt.Errorf("smtp unavailable")
	}
	d.dispatched = append(d.dispatched, submission.ReferenceID)
	return nil
}
