package trust

import (
	"context"
	"fmt"
	"time"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// SignalStrength grades how loudly the graph endorses a wallet.
type SignalStrength string

const (
	StrengthScreamingBuy SignalStrength = "SCREAMING_BUY"
	StrengthStrongBuy    SignalStrength = "STRONG_BUY"
	StrengthModerateBuy  SignalStrength = "MODERATE_BUY"
	StrengthNone         SignalStrength = "NONE"
)

const (
	// maxTraceHops bounds the upward funding trace.
	maxTraceHops = 2
	// hopDecay shrinks boost and signal confidence per extra hop.
	hopDecay = 0.8
	// traceFanOut caps funders examined per node to keep the walk bounded
	// on dense graphs.
	traceFanOut = 16
	// insiderMinConfidence is the funder confidence floor for an insider
	// signal at one hop.
	insiderMinConfidence = 0.5
)

// boost per linked tier at one hop.
var tierBoost = map[domain.Tier]float64{
	domain.TierS: 0.25,
	domain.TierA: 0.15,
	domain.TierB: 0.05,
}

// GraphLink is the strongest funding-graph endorsement found for a wallet.
type GraphLink struct {
	Funder     string
	Tier       domain.Tier
	Hops       int
	Boost      float64
	Confidence float64
	Strength   SignalStrength
}

// TraceInsider walks the funding graph upward from a wallet, at most two
// hops, and returns the strongest endorsement. Exchange hot wallets are
// dead ends and contribute nothing. Funders with fewer than three wins
// contribute nothing regardless of tier.
func (g *Graph) TraceInsider(ctx context.Context, address string, now time.Time) (*GraphLink, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	best := &GraphLink{Strength: StrengthNone}
	visited := map[string]bool{address: true}
	frontier := []string{address}

	for hop := 1; hop <= maxTraceHops; hop++ {
		var next []string
		for _, node := range frontier {
			edges, err := g.edges.ByTarget(ctx, node)
			if err != nil {
				return nil, fmt.Errorf("edges by target %s: %w", node, err)
			}
			if len(edges) > traceFanOut {
				edges = edges[:traceFanOut]
			}
			for _, e := range edges {
				if visited[e.Source] {
					continue
				}
				visited[e.Source] = true

				if _, isCEX := g.cex.Lookup(e.Source); isCEX {
					continue
				}
				next = append(next, e.Source)

				funder, err := g.wallets.Get(ctx, e.Source)
				if err == storage.ErrNotFound {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("get funder %s: %w", e.Source, err)
				}
				if funder.WinCount < minWinsForTrust {
					continue
				}

				g.considerLink(best, funder, hop, now)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return best, nil
}

// considerLink updates best in place if this funder at this hop beats it.
func (g *Graph) considerLink(best *GraphLink, funder *domain.Wallet, hop int, now time.Time) {
	tier := funder.Tier
	if tier == domain.TierMother {
		tier = domain.TierS
	}
	base, ok := tierBoost[tier]
	if !ok {
		return
	}

	decay := 1.0
	for i := 1; i < hop; i++ {
		decay *= hopDecay
	}
	boost := base * decay
	conf := funder.Confidence * DecayFactor(funder, now) * decay

	if boost < best.Boost || (boost == best.Boost && conf <= best.Confidence) {
		return
	}

	best.Funder = funder.Address
	best.Tier = tier
	best.Hops = hop
	best.Boost = boost
	best.Confidence = conf
	best.Strength = linkStrength(tier, hop, conf)
}

// linkStrength maps tier and hop distance to a signal grade. Two-hop
// links are downgraded one grade.
func linkStrength(tier domain.Tier, hop int, conf float64) SignalStrength {
	if conf <= insiderMinConfidence {
		return StrengthNone
	}
	var s SignalStrength
	switch tier {
	case domain.TierS:
		s = StrengthScreamingBuy
	case domain.TierA:
		s = StrengthStrongBuy
	case domain.TierB:
		s = StrengthModerateBuy
	default:
		return StrengthNone
	}
	if hop > 1 {
		switch s {
		case StrengthScreamingBuy:
			s = StrengthStrongBuy
		case StrengthStrongBuy:
			s = StrengthModerateBuy
		default:
			s = StrengthNone
		}
	}
	return s
}
