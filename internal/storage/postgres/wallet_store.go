package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `
	address, tier, confidence, win_count, loss_count, total_pnl,
	cex_funded, cex_source, first_seen, last_reinforced_at, promoted_at
`

// Upsert inserts or replaces a wallet by address.
func (s *WalletStore) Upsert(ctx context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address) DO UPDATE SET
			tier = EXCLUDED.tier,
			confidence = EXCLUDED.confidence,
			win_count = EXCLUDED.win_count,
			loss_count = EXCLUDED.loss_count,
			total_pnl = EXCLUDED.total_pnl,
			cex_funded = EXCLUDED.cex_funded,
			cex_source = EXCLUDED.cex_source,
			first_seen = EXCLUDED.first_seen,
			last_reinforced_at = EXCLUDED.last_reinforced_at,
			promoted_at = EXCLUDED.promoted_at
	`

	_, err := s.pool.Exec(ctx, query,
		w.Address, w.Tier, w.Confidence, w.WinCount, w.LossCount, w.TotalPnL,
		w.CEXFunded, w.CEXSource, w.FirstSeen, w.LastReinforcedAt, w.PromotedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// Get retrieves a wallet by address. Returns ErrNotFound if not exists.
func (s *WalletStore) Get(ctx context.Context, address string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE address = $1`

	w, err := scanWallet(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// List retrieves all wallets, ordered by address ASC.
func (s *WalletStore) List(ctx context.Context) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// ListByTier retrieves all wallets of a tier, ordered by address ASC.
func (s *WalletStore) ListByTier(ctx context.Context, tier domain.Tier) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE tier = $1 ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query, tier)
	if err != nil {
		return nil, fmt.Errorf("list wallets by tier: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// CountPromotionsSince counts MOTHER promotions at or after since (Unix ms).
func (s *WalletStore) CountPromotionsSince(ctx context.Context, since int64) (int, error) {
	query := `SELECT COUNT(*) FROM wallets WHERE tier = $1 AND promoted_at >= $2`

	var count int
	if err := s.pool.QueryRow(ctx, query, domain.TierMother, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count promotions: %w", err)
	}
	return count, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.Address, &w.Tier, &w.Confidence, &w.WinCount, &w.LossCount, &w.TotalPnL,
		&w.CEXFunded, &w.CEXSource, &w.FirstSeen, &w.LastReinforcedAt, &w.PromotedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWallets(rows pgx.Rows) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}
