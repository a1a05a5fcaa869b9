package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// AuditRepository reads the append-only transition log. Writes happen inside
// SubmissionRepository.ApplyTransition so an audit entry can never exist
// without its transition (or vice versa).
type AuditRepository interface {
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.AuditEntry, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository constructs the audit repository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
