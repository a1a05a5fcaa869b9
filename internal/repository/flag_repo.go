package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ReMyndassessments/concern2care-api/internal/models"
)

// FlagRepository persists feature flags.
type FlagRepository interface {
	List(ctx context.Context) ([]models.FeatureFlag, error)
	GetByName(ctx context.Context, name string) (models.FeatureFlag, error)
	Upsert(ctx context.Context, flag *models.FeatureFlag) error
}

type flagRepository struct {
	db *gorm.DB
}

// NewFlagRepository constructs the flag repository.
func NewFlagRepository(db *gorm.DB) FlagRepository {
	return &flagRepository{db: db}
}

func (r *flagRepository) List(ctx context.Context) ([]models.FeatureFlag, error) {
	var flags []models.FeatureFlag
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&flags).Error; err != nil {
		return nil, err
	}
	return flags, nil
}

func (r *flagRepository) GetByName(ctx context.Context, name string) (models.FeatureFlag, error) {
	var flag models.FeatureFlag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&flag).Error; err != nil {
		return models.FeatureFlag{}, err
	}
	return flag, nil
}

func (r *flagRepository) Upsert(ctx context.Context, flag *models.FeatureFlag) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "description", "updated_by", "updated_at"}),
	}).Create(flag).Error
}
