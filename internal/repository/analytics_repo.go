package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// PipelineStats aggregates submission counts for the admin dashboard.
type PipelineStats struct {
	CountsByState    map[models.SubmissionState]int64
	UrgentTotal      int64
	Total            int64
	DispatchFailures int64
	AvgMinutesToSend float64
}

// AnalyticsRepository runs aggregate queries over the submission table.
type AnalyticsRepository interface {
	PipelineStats(ctx context.Context) (PipelineStats, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) PipelineStats(ctx context.Context) (PipelineStats, error) {
	stats := PipelineStats{CountsByState: make(map[models.SubmissionState]int64)}

	type stateCount struct {
		State models.SubmissionState
		Count int64
	}
	var byState []stateCount
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("state, COUNT(*) AS count").
		Group("state").
		Scan(&byState).Error; err != nil {
		return PipelineStats{}, err
	}
	for _, row := range byState {
		stats.CountsByState[row.State] = row.Count
		stats.Total += row.Count
	}

	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("classification = ?", models.ClassificationUrgent).
		Count(&stats.UrgentTotal).Error; err != nil {
		return PipelineStats{}, err
	}

	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("last_dispatch_error <> ''").
		Count(&stats.DispatchFailures).Error; err != nil {
		return PipelineStats{}, err
	}

	// Averaged in Go rather than SQL so the query stays portable between
	// postgres and the sqlite test driver.
	var sent []models.Submission
	if err := r.db.WithContext(ctx).
		Where("state = ? AND sent_at IS NOT NULL", models.StateSent).
		Find(&sent).Error; err != nil {
		return PipelineStats{}, err
	}
	if len(sent) > 0 {
		var totalMinutes float64
		for _, s := range sent {
			totalMinutes += s.SentAt.Sub(s.CreatedAt).Minutes()
		}
		stats.AvgMinutesToSend = totalMinutes / float64(len(sent))
	}

	return stats, nil
}
