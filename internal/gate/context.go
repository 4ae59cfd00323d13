package gate

import (
	"time"

	"trade-sentinel/internal/domain"
)

// MarketFacts are the price and liquidity observations for a token at
// evaluation time. Pointer fields distinguish "observed" from
// "unavailable"; an unavailable field fails the gate that needs it.
type MarketFacts struct {
	Bid              *float64
	Ask              *float64
	PoolLiquidityUSD *float64
	TokenCreatedAt   *int64 // Unix ms
}

// SimulationResult is the pre-trade simulator verdict.
type SimulationResult struct {
	Honeypot           bool // sell reverted in simulation
	BuyTaxPct          float64
	SellTaxPct         float64
	LiquidityImpactPct float64
}

// TotalTax is the combined round-trip tax fraction.
func (s *SimulationResult) TotalTax() float64 {
	return s.BuyTaxPct + s.SellTaxPct
}

// EvalContext carries everything one evaluation needs, snapshotted
// before the first gate runs. The risk state in particular is a copy
// taken atomically with the freshness clock.
type EvalContext struct {
	CorrelationID string
	Now           time.Time
	Risk          domain.RiskState

	// Market and Simulation are nil when the collaborator failed or
	// timed out; the owning gate treats that as its own failure.
	Market     *MarketFacts
	Simulation *SimulationResult

	// BaseConfidence is the originating wallet's decayed confidence.
	// GraphBoost is the tier-and-hop boost, already zeroed by the engine
	// under early-trade restrictions.
	BaseConfidence float64
	GraphBoost     float64

	// ClusterID attributes the signal to a wallet cluster for cooldown
	// counting; empty when unattributed.
	ClusterID string

	// EarlyTradeReason is a non-empty refusal from the early-account
	// trade-frequency limits, surfaced through the cooldown gate.
	EarlyTradeReason string
}

// Confidence is the pipeline's output confidence: base plus graph
// boost, capped at 1.0.
func (ec *EvalContext) Confidence() float64 {
	c := ec.BaseConfidence + ec.GraphBoost
	if c > 1.0 {
		return 1.0
	}
	return c
}
