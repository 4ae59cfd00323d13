package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, correlation_id, token, asset_class, entry_price, entry_time,
	size_usd, peak_price, trailing_armed, whale_wallet, whale_last_seen,
	graph_sourced
`

// Insert adds an open position. Returns ErrDuplicateKey if position_id
// exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.OpenPosition) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO open_positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.CorrelationID, p.Token, p.AssetClass, p.EntryPrice, p.EntryTime,
		p.SizeUSD, p.PeakPrice, p.TrailingArmed, p.WhaleWallet, p.WhaleLastSeen,
		p.GraphSourced,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Get retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, positionID string) (*domain.OpenPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM open_positions WHERE position_id = $1`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, positionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// ListOpen retrieves all open positions, oldest entry first.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.OpenPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM open_positions ORDER BY entry_time ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.OpenPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}

// Update replaces a position.
func (s *PositionStore) Update(ctx context.Context, p *domain.OpenPosition) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE open_positions SET
			correlation_id = $2,
			token = $3,
			asset_class = $4,
			entry_price = $5,
			entry_time = $6,
			size_usd = $7,
			peak_price = $8,
			trailing_armed = $9,
			whale_wallet = $10,
			whale_last_seen = $11,
			graph_sourced = $12
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID, p.CorrelationID, p.Token, p.AssetClass, p.EntryPrice, p.EntryTime,
		p.SizeUSD, p.PeakPrice, p.TrailingArmed, p.WhaleWallet, p.WhaleLastSeen,
		p.GraphSourced,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a fully closed position.
func (s *PositionStore) Delete(ctx context.Context, positionID string) error {
	query := `DELETE FROM open_positions WHERE position_id = $1`

	tag, err := s.pool.Exec(ctx, query, positionID)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPosition(row pgx.Row) (*domain.OpenPosition, error) {
	var p domain.OpenPosition
	err := row.Scan(
		&p.PositionID, &p.CorrelationID, &p.Token, &p.AssetClass, &p.EntryPrice, &p.EntryTime,
		&p.SizeUSD, &p.PeakPrice, &p.TrailingArmed, &p.WhaleWallet, &p.WhaleLastSeen,
		&p.GraphSourced,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
