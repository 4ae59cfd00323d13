package postgres

import (
	"context"
	"fmt"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// RiskStateStore implements storage.RiskStateStore using PostgreSQL.
// The risk_state table holds exactly one row (id = 1).
type RiskStateStore struct {
	pool *Pool
}

// NewRiskStateStore creates a new RiskStateStore.
func NewRiskStateStore(pool *Pool) *RiskStateStore {
	return &RiskStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RiskStateStore = (*RiskStateStore)(nil)

// Save replaces the persisted risk state.
func (s *RiskStateStore) Save(ctx context.Context, st *domain.RiskState) error {
	if st == nil {
		return storage.ErrInvalidInput
	}
	if err := st.CheckIntegrity(); err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}

	query := `
		INSERT INTO risk_state (
			id, mode, capital, peak_capital, phase,
			trade_count, first_trade_at, mode_since,
			last_trade_at, first_week_trades, graph_observation_until
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			capital = EXCLUDED.capital,
			peak_capital = EXCLUDED.peak_capital,
			phase = EXCLUDED.phase,
			trade_count = EXCLUDED.trade_count,
			first_trade_at = EXCLUDED.first_trade_at,
			mode_since = EXCLUDED.mode_since,
			last_trade_at = EXCLUDED.last_trade_at,
			first_week_trades = EXCLUDED.first_week_trades,
			graph_observation_until = EXCLUDED.graph_observation_until
	`

	_, err := s.pool.Exec(ctx, query,
		st.Mode, st.Capital, st.PeakCapital, int(st.Phase),
		st.TradeCount, st.FirstTradeAt, st.ModeSince,
		st.LastTradeAt, st.FirstWeekTrades, st.GraphObservationUntil,
	)
	if err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	return nil
}

// Load retrieves the risk state. Returns ErrNotFound when none has been
// saved yet.
func (s *RiskStateStore) Load(ctx context.Context) (*domain.RiskState, error) {
	query := `
		SELECT mode, capital, peak_capital, phase,
		       trade_count, first_trade_at, mode_since,
		       last_trade_at, first_week_trades, graph_observation_until
		FROM risk_state WHERE id = 1
	`

	var st domain.RiskState
	var phase int
	err := s.pool.QueryRow(ctx, query).Scan(
		&st.Mode, &st.Capital, &st.PeakCapital, &phase,
		&st.TradeCount, &st.FirstTradeAt, &st.ModeSince,
		&st.LastTradeAt, &st.FirstWeekTrades, &st.GraphObservationUntil,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	st.Phase = domain.Phase(phase)

	if err := st.CheckIntegrity(); err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	return &st, nil
}
