package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// ErrVersionConflict indicates the conditional write lost the race: the
// stored version no longer matches the version the caller observed.
var ErrVersionConflict = errors.New("submission version conflict")

// SubmissionFilter narrows submission list queries.
type SubmissionFilter struct {
	State          *models.SubmissionState
	Classification *string
	TeacherEmail   *string
	Page           int
	PageSize       int
}

// SubmissionRepository is the persistence boundary for submissions. All
// lifecycle mutation goes through ApplyTransition's conditional write;
// RecordDispatchFailure touches only dispatch bookkeeping columns.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByReference(ctx context.Context, referenceID string) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error)
	FindDueForAutoSend(ctx context.Context, now time.Time, limit int) ([]models.Submission, error)
	FindAwaitingDispatch(ctx context.Context, limit int) ([]models.Submission, error)
	ApplyTransition(ctx context.Context, submission *models.Submission, expectedVersion uint64, entry *models.AuditEntry) error
	RecordDispatchFailure(ctx context.Context, id uint, attempt int, dispatchErr string) error
	UpdateGeneratedResponse(ctx context.Context, id uint, responseText string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.Version == 0 {
		submission.Version = 1
	}
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByReference(ctx context.Context, referenceID string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Classification != nil {
		query = query.Where("classification = ?", *filter.Classification)
	}
	if filter.TeacherEmail != nil {
		query = query.Where("teacher_email = ?", *filter.TeacherEmail)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *submissionRepository) FindDueForAutoSend(ctx context.Context, now time.Time, limit int) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).
		Where("state = ?", models.StatePendingReview).
		Where("review_deadline IS NOT NULL AND review_deadline <= ?", now).
		Order("review_deadline ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) FindAwaitingDispatch(ctx context.Context, limit int) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).
		Where("state IN ?", []models.SubmissionState{models.StateApproved, models.StateAutoSent}).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// ApplyTransition persists a state change with optimistic concurrency: the
// UPDATE is conditional on the stored version still matching expectedVersion,
// and the audit entry is inserted in the same transaction so a transition and
// its audit record are atomic. Zero rows affected means someone else
// transitioned the row first.
func (r *submissionRepository) ApplyTransition(ctx context.Context, submission *models.Submission, expectedVersion uint64, entry *models.AuditEntry) error {
	newVersion := expectedVersion + 1

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"state":           submission.State,
			"version":         newVersion,
			"last_actor_type": submission.LastActorType,
			"last_actor_id":   submission.LastActorID,
		}
		if submission.SentAt != nil {
			updates["sent_at"] = submission.SentAt
		}

		result := tx.Model(&models.Submission{}).
			Where("id = ? AND version = ?", submission.ID, expectedVersion).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		submission.Version = newVersion

		return tx.Create(entry).Error
	})
}

// RecordDispatchFailure attaches a delivery error to the submission without
// changing state or version; dispatch bookkeeping is not a lifecycle event.
func (r *submissionRepository) RecordDispatchFailure(ctx context.Context, id uint, attempt int, dispatchErr string) error {
	if len(dispatchErr) > 512 {
		dispatchErr = dispatchErr[:512]
	}
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dispatch_attempts":   attempt,
			"last_dispatch_error": dispatchErr,
		}).Error
}

// UpdateGeneratedResponse stores AI text produced after creation (initial
// generation or an admin retry). Response text is not part of the lifecycle,
// so the version is left untouched.
func (r *submissionRepository) UpdateGeneratedResponse(ctx context.Context, id uint, responseText string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("ai_response_text", responseText).Error
}
