package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
	"trade-sentinel/internal/storage/postgres"
)

func TestSampleStoreInsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSampleStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	samples := []*domain.SimulatorSample{
		{Predicted: domain.PredictedBlock, Actual: domain.OutcomeRug, WeightClass: 1.0, RecordedAt: now - 2000},
		{Predicted: domain.PredictedPass, Actual: domain.OutcomeWin, WeightClass: 0, RecordedAt: now - 1000},
		{Predicted: domain.PredictedPass, Actual: domain.OutcomeModestLoss, WeightClass: 0.5, RecordedAt: now},
	}
	for _, s := range samples {
		require.NoError(t, store.Insert(ctx, s))
	}

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, samples, got)

	require.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
}
