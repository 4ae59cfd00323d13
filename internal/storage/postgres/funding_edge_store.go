package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// FundingEdgeStore implements storage.FundingEdgeStore using PostgreSQL.
type FundingEdgeStore struct {
	pool *Pool
}

// NewFundingEdgeStore creates a new FundingEdgeStore.
func NewFundingEdgeStore(pool *Pool) *FundingEdgeStore {
	return &FundingEdgeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FundingEdgeStore = (*FundingEdgeStore)(nil)

const edgeColumns = `source, target, amount, ts, edge_confidence`

// Insert adds a funding edge. Returns ErrDuplicateKey if
// (source, target, timestamp) exists.
func (s *FundingEdgeStore) Insert(ctx context.Context, e *domain.FundingEdge) error {
	if e == nil || e.Source == "" || e.Target == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO funding_edges (` + edgeColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, e.Source, e.Target, e.Amount, e.Timestamp, e.EdgeConfidence)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert funding edge: %w", err)
	}
	return nil
}

// ByTarget retrieves edges funding the given wallet, newest first.
func (s *FundingEdgeStore) ByTarget(ctx context.Context, target string) ([]*domain.FundingEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM funding_edges WHERE target = $1 ORDER BY ts DESC`

	rows, err := s.pool.Query(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("edges by target: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// BySource retrieves edges funded by the given wallet, newest first.
func (s *FundingEdgeStore) BySource(ctx context.Context, source string) ([]*domain.FundingEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM funding_edges WHERE source = $1 ORDER BY ts DESC`

	rows, err := s.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("edges by source: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// List retrieves all edges.
func (s *FundingEdgeStore) List(ctx context.Context) ([]*domain.FundingEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM funding_edges ORDER BY ts DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list funding edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// UpdateConfidence sets the decayed confidence of one edge.
func (s *FundingEdgeStore) UpdateConfidence(ctx context.Context, source, target string, timestamp int64, confidence float64) error {
	query := `
		UPDATE funding_edges SET edge_confidence = $4
		WHERE source = $1 AND target = $2 AND ts = $3
	`

	tag, err := s.pool.Exec(ctx, query, source, target, timestamp, confidence)
	if err != nil {
		return fmt.Errorf("update edge confidence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PruneBelow deletes edges with confidence below the floor and returns
// the number removed.
func (s *FundingEdgeStore) PruneBelow(ctx context.Context, floor float64) (int, error) {
	query := `DELETE FROM funding_edges WHERE edge_confidence < $1`

	tag, err := s.pool.Exec(ctx, query, floor)
	if err != nil {
		return 0, fmt.Errorf("prune funding edges: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEdges(rows pgx.Rows) ([]*domain.FundingEdge, error) {
	var edges []*domain.FundingEdge
	for rows.Next() {
		var e domain.FundingEdge
		if err := rows.Scan(&e.Source, &e.Target, &e.Amount, &e.Timestamp, &e.EdgeConfidence); err != nil {
			return nil, fmt.Errorf("scan funding edge row: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funding edge rows: %w", err)
	}
	return edges, nil
}
