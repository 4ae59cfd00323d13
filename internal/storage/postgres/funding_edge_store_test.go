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

const (
	edgeFunder = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	edgeChild  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func testEdge(ts int64) *domain.FundingEdge {
	return &domain.FundingEdge{
		Source:         edgeFunder,
		Target:         edgeChild,
		Amount:         2.5,
		Timestamp:      ts,
		EdgeConfidence: 1.0,
	}
}

func TestFundingEdgeStoreInsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFundingEdgeStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	require.NoError(t, store.Insert(ctx, testEdge(now-1000)))
	require.NoError(t, store.Insert(ctx, testEdge(now)))

	// Same (source, target, ts) is a duplicate.
	require.ErrorIs(t, store.Insert(ctx, testEdge(now)), storage.ErrDuplicateKey)

	byTarget, err := store.ByTarget(ctx, edgeChild)
	require.NoError(t, err)
	require.Len(t, byTarget, 2)
	// Newest first.
	require.Equal(t, now, byTarget[0].Timestamp)

	bySource, err := store.BySource(ctx, edgeFunder)
	require.NoError(t, err)
	require.Len(t, bySource, 2)

	none, err := store.ByTarget(ctx, edgeFunder)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFundingEdgeStoreUpdateConfidence(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFundingEdgeStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	require.NoError(t, store.Insert(ctx, testEdge(now)))
	require.NoError(t, store.UpdateConfidence(ctx, edgeFunder, edgeChild, now, 0.5))

	edges, err := store.ByTarget(ctx, edgeChild)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, 0.5, edges[0].EdgeConfidence)

	err = store.UpdateConfidence(ctx, edgeFunder, edgeChild, now+1, 0.5)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFundingEdgeStorePruneBelow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewFundingEdgeStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	strong := testEdge(now)
	weak := testEdge(now - 1000)
	weak.EdgeConfidence = 0.02
	require.NoError(t, store.Insert(ctx, strong))
	require.NoError(t, store.Insert(ctx, weak))

	pruned, err := store.PruneBelow(ctx, domain.EdgeConfidenceFloor)
	require.NoError(t, err)
	require.Equal(t, 1, pruned)

	remaining, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, 1.0, remaining[0].EdgeConfidence)
}
