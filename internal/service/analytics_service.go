package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

const analyticsCacheKey = "c2c:analytics:overview"

// AnalyticsService aggregates pipeline statistics for the admin dashboard,
// cached in redis for a short TTL.
type AnalyticsService interface {
	Overview(ctx context.Context) (dto.AnalyticsOverviewResponse, error)
}

type analyticsService struct {
	repo     repository.AnalyticsRepository
	cache    *redis.Client
	logger   zerolog.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewAnalyticsService constructs the analytics service.
func NewAnalyticsService(repo repository.AnalyticsRepository, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) AnalyticsService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &analyticsService{
		repo:     repo,
		cache:    cache,
		logger:   logger.With().Str("component", "analytics_service").Logger(),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func (s *analyticsService) Overview(ctx context.Context) (dto.AnalyticsOverviewResponse, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, analyticsCacheKey).Result()
		if err == nil {
			var response dto.AnalyticsOverviewResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("analytics cache read failed")
		}
	}

	stats, err := s.repo.PipelineStats(ctx)
	if err != nil {
		return dto.AnalyticsOverviewResponse{}, err
	}

	counts := make(map[string]int64, len(stats.CountsByState))
	for state, count := range stats.CountsByState {
		counts[string(state)] = count
	}

	response := dto.AnalyticsOverviewResponse{
		Total:            stats.Total,
		CountsByState:    counts,
		UrgentTotal:      stats.UrgentTotal,
		DispatchFailures: stats.DispatchFailures,
		AvgMinutesToSend: stats.AvgMinutesToSend,
		GeneratedAt:      s.now().UTC(),
	}
	if stats.Total > 0 {
		response.UrgentRate = float64(stats.UrgentTotal) / float64(stats.Total)
	}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(response); marshalErr == nil {
			if err := s.cache.Set(ctx, analyticsCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("analytics cache write failed")
			}
		}
	}

	return response, nil
}
