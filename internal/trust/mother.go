package trust

import (
	"context"
	"fmt"
	"time"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/storage"
)

const (
	// motherMinCycles is how many distinct calendar months of funding
	// activity, each producing at least one winning child, a wallet
	// needs before promotion.
	motherMinCycles = 2
)

// ScanForMothers promotes wallets whose funding history shows repeated
// successful cycles: at least two distinct calendar months in which the
// wallet funded a child that went on to win, with non-negative aggregate
// PnL across all funded children. Promotion is one-way.
func (g *Graph) ScanForMothers(ctx context.Context, sink events.Sink, now time.Time) ([]string, error) {
	wallets, err := g.wallets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	var promoted []string
	for _, w := range wallets {
		if w.Tier == domain.TierMother || w.CEXFunded {
			continue
		}
		if _, isCEX := g.cex.Lookup(w.Address); isCEX {
			continue
		}

		ok, err := g.qualifiesAsMother(ctx, w.Address)
		if err != nil {
			return promoted, err
		}
		if !ok {
			continue
		}

		w.Tier = domain.TierMother
		w.PromotedAt = now.UnixMilli()
		if err := g.wallets.Upsert(ctx, w); err != nil {
			return promoted, fmt.Errorf("promote wallet %s: %w", w.Address, err)
		}
		promoted = append(promoted, w.Address)

		g.log.WithField("wallet", w.Address).Info("mother wallet promoted")
		if sink != nil {
			sink.Emit(events.Event{
				Type:     events.TypeMotherPromotion,
				Severity: events.SeverityInfo,
				At:       now.UnixMilli(),
				Fields:   map[string]string{"wallet": w.Address},
			})
		}
	}
	return promoted, nil
}

// qualifiesAsMother checks the cycle criteria for one candidate.
func (g *Graph) qualifiesAsMother(ctx context.Context, address string) (bool, error) {
	edges, err := g.edges.BySource(ctx, address)
	if err != nil {
		return false, fmt.Errorf("edges by source %s: %w", address, err)
	}
	if len(edges) == 0 {
		return false, nil
	}

	winningMonths := make(map[string]bool)
	aggregatePnL := 0.0
	seenChild := make(map[string]bool)

	for _, e := range edges {
		child, err := g.wallets.Get(ctx, e.Target)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("get child %s: %w", e.Target, err)
		}

		if !seenChild[child.Address] {
			seenChild[child.Address] = true
			aggregatePnL += child.TotalPnL
		}
		if child.WinCount > 0 {
			month := time.UnixMilli(e.Timestamp).UTC().Format("2006-01")
			winningMonths[month] = true
		}
	}

	return len(winningMonths) >= motherMinCycles && aggregatePnL >= 0, nil
}

// RecentPromotions counts mother promotions since the cutoff. Feeds the
// graph kill-switch trigger.
func (g *Graph) RecentPromotions(ctx context.Context, since time.Time) (int, error) {
	n, err := g.wallets.CountPromotionsSince(ctx, since.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("count promotions: %w", err)
	}
	return n, nil
}
