package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

// FlagService exposes operational feature flags. Lookups are cached in redis
// so the intake path and scheduler tick stay cheap.
type FlagService interface {
	List(ctx context.Context) ([]dto.FlagResponse, error)
	Update(ctx context.Context, req dto.FlagUpdateRequest, updatedBy string) (dto.FlagResponse, error)
	IsEnabled(ctx context.Context, name string) bool
}

type flagService struct {
	repo      repository.FlagRepository
	cache     *redis.Client
	validator *validator.Validate
	logger    zerolog.Logger
	cacheTTL  time.Duration
}

// NewFlagService constructs the feature flag service.
func NewFlagService(repo repository.FlagRepository, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger) FlagService {
	return &flagService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		logger:    logger.With().Str("component", "flag_service").Logger(),
		cacheTTL:  time.Minute,
	}
}

func (s *flagService) List(ctx context.Context) ([]dto.FlagResponse, error) {
	flags, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewFlagResponseSlice(flags), nil
}

func (s *flagService) Update(ctx context.Context, req dto.FlagUpdateRequest, updatedBy string) (dto.FlagResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.FlagResponse{}, err
	}

	flag := models.FeatureFlag{
		Name:        strings.ToLower(strings.TrimSpace(req.Name)),
		Enabled:     req.Enabled,
		Description: strings.TrimSpace(req.Description),
		UpdatedBy:   updatedBy,
	}
	if err := s.repo.Upsert(ctx, &flag); err != nil {
		return dto.FlagResponse{}, err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey(flag.Name)).Err(); err != nil {
			s.logger.Warn().Err(err).Str("flag", flag.Name).Msg("failed to invalidate flag cache")
		}
	}

	s.logger.Info().Str("flag", flag.Name).Bool("enabled", flag.Enabled).Str("updated_by", updatedBy).Msg("feature flag updated")
	return dto.NewFlagResponse(flag), nil
}

// IsEnabled resolves a flag, defaulting to enabled when the flag has never
// been configured. Cache or store errors also fail open: a broken flag store
// must not stop the pipeline.
func (s *flagService) IsEnabled(ctx context.Context, name string) bool {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.cacheKey(name)).Result()
		if err == nil {
			return cached == "1"
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("flag", name).Msg("flag cache read failed")
		}
	}

	enabled := true
	flag, err := s.repo.GetByName(ctx, name)
	switch {
	case err == nil:
		enabled = flag.Enabled
	case errors.Is(err, gorm.ErrRecordNotFound):
		// unset flags default to enabled
	default:
		s.logger.Warn().Err(err).Str("flag", name).Msg("flag lookup failed")
		return true
	}

	if s.cache != nil {
		value := "0"
		if enabled {
			value = "1"
		}
		if err := s.cache.Set(ctx, s.cacheKey(name), value, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("flag", name).Msg("flag cache write failed")
		}
	}

	return enabled
}

func (s *flagService) cacheKey(name string) string {
	return fmt.Sprintf("c2c:flags:%s", name)
}
