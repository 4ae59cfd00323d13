package engine

import (
	"context"

	"trade-sentinel/internal/gate"
)

// MarketData supplies price and liquidity facts for a token. A nil
// result or an error is treated as unavailable data and fails the
// owning gate; the engine never retries inside an evaluation.
type MarketData interface {
	Facts(ctx context.Context, token string) (*gate.MarketFacts, error)
}

// Simulator runs the pre-trade buy/sell simulation for a token.
type Simulator interface {
	Simulate(ctx context.Context, token string) (*gate.SimulationResult, error)
}
