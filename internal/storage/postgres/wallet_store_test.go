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

func testWallet(address string) *domain.Wallet {
	now := time.Now().UnixMilli()
	return &domain.Wallet{
		Address:          address,
		Tier:             domain.TierB,
		Confidence:       0.7,
		WinCount:         3,
		LossCount:        1,
		TotalPnL:         1500,
		FirstSeen:        now,
		LastReinforcedAt: now,
	}
}

func TestWalletStoreUpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewWalletStore(pool)
	ctx := context.Background()

	w := testWallet("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	require.NoError(t, store.Upsert(ctx, w))

	got, err := store.Get(ctx, w.Address)
	require.NoError(t, err)
	require.Equal(t, w, got)

	// Upsert replaces in place.
	w.Confidence = 0.49
	w.Tier = domain.TierC
	require.NoError(t, store.Upsert(ctx, w))

	got, err = store.Get(ctx, w.Address)
	require.NoError(t, err)
	require.Equal(t, domain.TierC, got.Tier)
	require.Equal(t, 0.49, got.Confidence)
}

func TestWalletStoreGetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewWalletStore(pool)
	_, err := store.Get(context.Background(), "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStoreUpsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewWalletStore(pool)
	ctx := context.Background()

	require.ErrorIs(t, store.Upsert(ctx, nil), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Upsert(ctx, &domain.Wallet{}), storage.ErrInvalidInput)
}

func TestWalletStoreListByTier(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewWalletStore(pool)
	ctx := context.Background()

	a := testWallet("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	b := testWallet("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	b.Tier = domain.TierS
	c := testWallet("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))
	require.NoError(t, store.Upsert(ctx, c))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by address ASC.
	require.Equal(t, a.Address, all[0].Address)
	require.Equal(t, b.Address, all[1].Address)
	require.Equal(t, c.Address, all[2].Address)

	tierB, err := store.ListByTier(ctx, domain.TierB)
	require.NoError(t, err)
	require.Len(t, tierB, 2)
}

func TestWalletStoreCountPromotionsSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewWalletStore(pool)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	old := testWallet("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	old.Tier = domain.TierMother
	old.PromotedAt = now - 48*time.Hour.Milliseconds()
	recent := testWallet("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	recent.Tier = domain.TierMother
	recent.PromotedAt = now - time.Hour.Milliseconds()
	require.NoError(t, store.Upsert(ctx, old))
	require.NoError(t, store.Upsert(ctx, recent))

	count, err := store.CountPromotionsSince(ctx, now-24*time.Hour.Milliseconds())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
