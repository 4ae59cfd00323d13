// Package trust owns wallet and funding-relationship records: confidence
// and edge decay, reinforcement on trade outcomes, anti-poisoning trust
// gating, and mother-wallet discovery over the funding graph.
package trust

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

const (
	// confidenceHalfLifeDays is the wallet confidence half-life.
	confidenceHalfLifeDays = 30.0
	// edgeHalfLifeDays is the funding edge half-life.
	edgeHalfLifeDays = 60.0

	// winConfidenceBoost and lossConfidencePenalty implement the
	// earn-slowly / lose-fast asymmetry.
	winConfidenceBoost    = 1.1
	lossConfidencePenalty = 0.7

	// minWinsForTrust: a wallet contributes zero graph boost until it
	// has this many recorded wins.
	minWinsForTrust = 3

	// newWalletConfidence is assigned on first observation. Deliberately
	// below every boost threshold: trust is earned, not granted.
	newWalletConfidence = 0.5
)

// Graph is the wallet trust graph over persistent stores.
type Graph struct {
	wallets storage.WalletStore
	edges   storage.FundingEdgeStore
	cex     *CEXRegistry
	log     *logrus.Entry
}

// NewGraph creates a trust graph.
func NewGraph(wallets storage.WalletStore, edges storage.FundingEdgeStore, cex *CEXRegistry) *Graph {
	if cex == nil {
		cex = NewCEXRegistry(nil)
	}
	return &Graph{
		wallets: wallets,
		edges:   edges,
		cex:     cex,
		log:     logrus.WithField("component", "trust"),
	}
}

// validateAddress rejects anything that is not a plausible base58 address.
func validateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("address %q is not base58: %w", addr, err)
	}
	if len(raw) < 16 || len(raw) > 64 {
		return fmt.Errorf("address %q has implausible decoded length %d", addr, len(raw))
	}
	return nil
}

// Observe ensures a wallet record exists, creating it with UNKNOWN tier
// and starter confidence on first sight. Returns the current record.
func (g *Graph) Observe(ctx context.Context, address string, now time.Time) (*domain.Wallet, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	w, err := g.wallets.Get(ctx, address)
	if err == nil {
		if ierr := w.CheckIntegrity(); ierr != nil {
			return nil, ierr
		}
		return w, nil
	}
	if err != storage.ErrNotFound {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	w = &domain.Wallet{
		Address:    address,
		Tier:       domain.TierUnknown,
		Confidence: newWalletConfidence,
		FirstSeen:  now.UnixMilli(),
	}
	if err := g.wallets.Upsert(ctx, w); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// Reinforce records a trade outcome against a wallet. Wins raise
// confidence slowly and stamp the reinforcement time; losses cut it hard.
func (g *Graph) Reinforce(ctx context.Context, address string, pnl float64, now time.Time) (*domain.Wallet, error) {
	w, err := g.Observe(ctx, address, now)
	if err != nil {
		return nil, err
	}

	if pnl > 0 {
		w.Confidence = math.Min(w.Confidence*winConfidenceBoost, 1.0)
		w.WinCount++
		w.LastReinforcedAt = now.UnixMilli()
	} else {
		w.Confidence *= lossConfidencePenalty
		w.LossCount++
	}
	w.TotalPnL += pnl
	w.Tier = recomputeTier(w)

	if err := g.wallets.Upsert(ctx, w); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"wallet":     address,
		"pnl":        pnl,
		"confidence": w.Confidence,
		"tier":       w.Tier,
	}).Debug("reinforcement applied")

	return w, nil
}

// ObserveFunding records a funding relationship. If the source is a known
// exchange hot wallet the edge is recorded and the child flagged, but the
// chain is never traced further upward and the link never boosts trust.
func (g *Graph) ObserveFunding(ctx context.Context, source, target string, amount float64, at time.Time) error {
	if err := validateAddress(target); err != nil {
		return err
	}

	if exchange, isCEX := g.cex.Lookup(source); isCEX {
		child, err := g.Observe(ctx, target, at)
		if err != nil {
			return err
		}
		child.CEXFunded = true
		child.CEXSource = exchange
		if err := g.wallets.Upsert(ctx, child); err != nil {
			return fmt.Errorf("flag cex-funded wallet: %w", err)
		}
		// Record the edge for audit; it is a dead end for tracing.
		err = g.edges.Insert(ctx, &domain.FundingEdge{
			Source:         source,
			Target:         target,
			Amount:         amount,
			Timestamp:      at.UnixMilli(),
			EdgeConfidence: 1.0,
		})
		if err != nil && err != storage.ErrDuplicateKey {
			return fmt.Errorf("insert cex edge: %w", err)
		}
		return nil
	}

	if err := validateAddress(source); err != nil {
		return err
	}
	if _, err := g.Observe(ctx, source, at); err != nil {
		return err
	}
	if _, err := g.Observe(ctx, target, at); err != nil {
		return err
	}

	err := g.edges.Insert(ctx, &domain.FundingEdge{
		Source:         source,
		Target:         target,
		Amount:         amount,
		Timestamp:      at.UnixMilli(),
		EdgeConfidence: 1.0,
	})
	if err != nil && err != storage.ErrDuplicateKey {
		return fmt.Errorf("insert funding edge: %w", err)
	}
	return nil
}

// DecayStats summarizes one decay run.
type DecayStats struct {
	WalletsDecayed int
	TierDowngrades int
	EdgesDecayed   int
	EdgesPruned    int
}

// ApplyDecay runs the periodic confidence and edge decay.
// Wallet confidence halves every 30 days without reinforcement; edges
// halve every 60 days from creation and are pruned below the floor.
func (g *Graph) ApplyDecay(ctx context.Context, now time.Time) (DecayStats, error) {
	var stats DecayStats

	wallets, err := g.wallets.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list wallets: %w", err)
	}
	for _, w := range wallets {
		ref := w.LastReinforcedAt
		if ref == 0 {
			ref = w.FirstSeen
		}
		days := float64(now.UnixMilli()-ref) / float64(24*time.Hour/time.Millisecond)
		if days <= 0 {
			continue
		}
		w.Confidence *= math.Pow(0.5, days/confidenceHalfLifeDays)
		stats.WalletsDecayed++

		if downgraded := downgradeTier(w); downgraded {
			stats.TierDowngrades++
		}
		if err := g.wallets.Upsert(ctx, w); err != nil {
			return stats, fmt.Errorf("save decayed wallet: %w", err)
		}
	}

	edges, err := g.edges.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list edges: %w", err)
	}
	for _, e := range edges {
		days := float64(now.UnixMilli()-e.Timestamp) / float64(24*time.Hour/time.Millisecond)
		if days <= 0 {
			continue
		}
		decayed := e.EdgeConfidence * math.Pow(0.5, days/edgeHalfLifeDays)
		if err := g.edges.UpdateConfidence(ctx, e.Source, e.Target, e.Timestamp, decayed); err != nil {
			return stats, fmt.Errorf("save decayed edge: %w", err)
		}
		stats.EdgesDecayed++
	}

	pruned, err := g.edges.PruneBelow(ctx, domain.EdgeConfidenceFloor)
	if err != nil {
		return stats, fmt.Errorf("prune edges: %w", err)
	}
	stats.EdgesPruned = pruned

	g.log.WithFields(logrus.Fields{
		"wallets_decayed": stats.WalletsDecayed,
		"tier_downgrades": stats.TierDowngrades,
		"edges_pruned":    stats.EdgesPruned,
	}).Info("decay pass complete")

	return stats, nil
}

// DecayFactor returns the current multiplicative decay for a wallet
// without mutating it, for read-path confidence adjustment.
func DecayFactor(w *domain.Wallet, now time.Time) float64 {
	ref := w.LastReinforcedAt
	if ref == 0 {
		ref = w.FirstSeen
	}
	days := float64(now.UnixMilli()-ref) / float64(24*time.Hour/time.Millisecond)
	if days <= 0 {
		return 1.0
	}
	return math.Pow(0.5, days/confidenceHalfLifeDays)
}
