package storage

import (
	"context"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
)

// WalletStore provides access to the wallets table.
type WalletStore interface {
	// Upsert inserts or replaces a wallet by address.
	Upsert(ctx context.Context, w *domain.Wallet) error

	// Get retrieves a wallet by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.Wallet, error)

	// List retrieves all wallets, ordered by address ASC.
	List(ctx context.Context) ([]*domain.Wallet, error)

	// ListByTier retrieves all wallets of a tier, ordered by address ASC.
	ListByTier(ctx context.Context, tier domain.Tier) ([]*domain.Wallet, error)

	// CountPromotionsSince counts MOTHER promotions at or after the
	// given Unix ms timestamp.
	CountPromotionsSince(ctx context.Context, since int64) (int, error)
}

// FundingEdgeStore provides access to the funding_edges table.
type FundingEdgeStore interface {
	// Insert adds a funding edge. Returns ErrDuplicateKey if
	// (source, target, timestamp) exists.
	Insert(ctx context.Context, e *domain.FundingEdge) error

	// ByTarget retrieves edges funding the given wallet, newest first.
	ByTarget(ctx context.Context, target string) ([]*domain.FundingEdge, error)

	// BySource retrieves edges funded by the given wallet, newest first.
	BySource(ctx context.Context, source string) ([]*domain.FundingEdge, error)

	// List retrieves all edges.
	List(ctx context.Context) ([]*domain.FundingEdge, error)

	// UpdateConfidence sets the decayed confidence of one edge.
	UpdateConfidence(ctx context.Context, source, target string, timestamp int64, confidence float64) error

	// PruneBelow deletes edges with confidence below the floor and
	// returns the number removed.
	PruneBelow(ctx context.Context, floor float64) (int, error)
}

// RiskStateStore persists the singleton risk state.
type RiskStateStore interface {
	// Save replaces the persisted risk state.
	Save(ctx context.Context, s *domain.RiskState) error

	// Load retrieves the risk state. Returns ErrNotFound when none has
	// been saved yet.
	Load(ctx context.Context) (*domain.RiskState, error)
}

// SampleStore provides access to the simulator_samples table.
type SampleStore interface {
	// Insert appends a sample.
	Insert(ctx context.Context, s *domain.SimulatorSample) error

	// List retrieves all samples, oldest first.
	List(ctx context.Context) ([]*domain.SimulatorSample, error)
}

// PositionStore provides access to the open_positions table.
type PositionStore interface {
	// Insert adds an open position. Returns ErrDuplicateKey if
	// position_id exists.
	Insert(ctx context.Context, p *domain.OpenPosition) error

	// Get retrieves a position by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, positionID string) (*domain.OpenPosition, error)

	// ListOpen retrieves all open positions, oldest entry first.
	ListOpen(ctx context.Context) ([]*domain.OpenPosition, error)

	// Update replaces a position (peak price, armed flag, size).
	Update(ctx context.Context, p *domain.OpenPosition) error

	// Delete removes a fully closed position.
	Delete(ctx context.Context, positionID string) error
}

// AuditStore records pipeline decisions and the event stream.
// Append-only; used for audit, never read on the trading path.
type AuditStore interface {
	// InsertDecision appends one pipeline evaluation with its full
	// gate trail.
	InsertDecision(ctx context.Context, d *domain.DecisionRecord) error

	// InsertEvent appends one event-stream record.
	InsertEvent(ctx context.Context, e events.Event) error
}
