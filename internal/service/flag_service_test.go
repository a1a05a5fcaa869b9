package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
)

func TestFlagDefaultsToEnabled(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewFlagService(repository.NewFlagRepository(db), nil, validator.New(), testLogger())

	require.True(t, svc.IsEnabled(context.Background(), models.FlagIntakeOpen))
}

func TestFlagUpdateAndLookup(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewFlagService(repository.NewFlagRepository(db), nil, validator.New(), testLogger())

	resp, err := svc.Update(context.Background(), dto.FlagUpdateRequest{
		Name:    models.FlagAutoSendEnabled,
		Enabled: false,
	}, "admin-1")
	require.NoError(t, err)
	require.False(t, resp.Enabled)
	require.Equal(t, "admin-1", resp.UpdatedBy)

	require.False(t, svc.IsEnabled(context.Background(), models.FlagAutoSendEnabled))

	flags, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, flags, 1)
}

func TestFlagCacheInvalidatedOnUpdate(t *testing.T) {
	db := setupServiceDB(t)
	cache := setupTestRedis(t)
	svc := NewFlagService(repository.NewFlagRepository(db), cache, validator.New(), testLogger())

	// First lookup primes the cache with the default.
	require.True(t, svc.IsEnabled(context.Background(), models.FlagIntakeOpen))

	_, err := svc.Update(context.Background(), dto.FlagUpdateRequest{
		Name:    models.FlagIntakeOpen,
		Enabled: false,
	}, "admin-1")
	require.NoError(t, err)

	require.False(t, svc.IsEnabled(context.Background(), models.FlagIntakeOpen))
}

func TestFlagUpdateValidatesName(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewFlagService(repository.NewFlagRepository(db), nil, validator.New(), testLogger())

	_, err := svc.Update(context.Background(), dto.FlagUpdateRequest{Name: ""}, "admin-1")
	require.Error(t, err)
}
