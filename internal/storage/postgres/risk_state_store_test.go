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

func TestRiskStateStoreRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRiskStateStore(pool)
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	st := &domain.RiskState{
		Mode:                  domain.RiskModeNormal,
		Capital:               10000,
		PeakCapital:           12000,
		Phase:                 2,
		TradeCount:            37,
		FirstTradeAt:          time.Now().Add(-30 * 24 * time.Hour).UnixMilli(),
		ModeSince:             time.Now().UnixMilli(),
		LastTradeAt:           time.Now().Add(-2 * time.Hour).UnixMilli(),
		FirstWeekTrades:       5,
		GraphObservationUntil: time.Now().Add(48 * time.Hour).UnixMilli(),
	}
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, st, got)

	// Save is an upsert on the singleton row.
	st.Mode = domain.RiskModeCapitalPreservation
	st.Capital = 9000
	require.NoError(t, store.Save(ctx, st))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.RiskModeCapitalPreservation, got.Mode)
	require.Equal(t, 9000.0, got.Capital)
}

func TestRiskStateStoreRejectsInvalidState(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRiskStateStore(pool)
	ctx := context.Background()

	require.ErrorIs(t, store.Save(ctx, nil), storage.ErrInvalidInput)

	bad := &domain.RiskState{Mode: "HALF_OPEN", Capital: 100, PeakCapital: 100}
	err := store.Save(ctx, bad)
	require.Error(t, err)

	var integrity *domain.IntegrityError
	require.ErrorAs(t, err, &integrity)
}
