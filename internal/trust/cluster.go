package trust

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-sentinel/internal/domain"
)

const (
	// clusterOverlapThreshold is the Jaccard similarity above which two
	// mother clusters count as overlapping for the graph kill-switch.
	clusterOverlapThreshold = 0.80

	// temporalWindow and temporalMinWallets define coordinated-buy
	// detection: this many distinct wallets on one token inside the
	// window marks a temporal cluster.
	temporalWindow     = 30 * time.Second
	temporalMinWallets = 5
)

// OverlappingClusterPairs counts pairs of mother wallets whose funded
// child sets exceed the Jaccard overlap threshold. High overlap across
// many pairs suggests one operator behind several mothers.
func (g *Graph) OverlappingClusterPairs(ctx context.Context) (int, error) {
	mothers, err := g.wallets.ListByTier(ctx, domain.TierMother)
	if err != nil {
		return 0, fmt.Errorf("list mothers: %w", err)
	}

	children := make([]map[string]bool, len(mothers))
	for i, m := range mothers {
		edges, err := g.edges.BySource(ctx, m.Address)
		if err != nil {
			return 0, fmt.Errorf("edges by source %s: %w", m.Address, err)
		}
		set := make(map[string]bool, len(edges))
		for _, e := range edges {
			set[e.Target] = true
		}
		children[i] = set
	}

	pairs := 0
	for i := 0; i < len(children); i++ {
		for j := i + 1; j < len(children); j++ {
			if jaccard(children[i], children[j]) > clusterOverlapThreshold {
				pairs++
			}
		}
	}
	return pairs, nil
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// TemporalClusterDetector watches buy observations per token and flags
// coordinated entry: five or more distinct wallets on the same token
// inside a thirty second window.
type TemporalClusterDetector struct {
	mu   sync.Mutex
	buys map[string][]buyObservation // token -> recent buys
}

type buyObservation struct {
	wallet string
	at     int64 // Unix ms
}

// NewTemporalClusterDetector creates an empty detector.
func NewTemporalClusterDetector() *TemporalClusterDetector {
	return &TemporalClusterDetector{buys: make(map[string][]buyObservation)}
}

// ObserveBuy records a buy and reports whether the token now has a
// temporal cluster within the window ending at now.
func (d *TemporalClusterDetector) ObserveBuy(token, wallet string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-temporalWindow).UnixMilli()
	kept := d.buys[token][:0]
	for _, b := range d.buys[token] {
		if b.at >= cutoff {
			kept = append(kept, b)
		}
	}
	kept = append(kept, buyObservation{wallet: wallet, at: now.UnixMilli()})
	d.buys[token] = kept

	distinct := make(map[string]bool, len(kept))
	for _, b := range kept {
		distinct[b.wallet] = true
	}
	return len(distinct) >= temporalMinWallets
}

// ActiveClusters returns tokens currently showing a temporal cluster,
// sorted for deterministic output.
func (d *TemporalClusterDetector) ActiveClusters(now time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-temporalWindow).UnixMilli()
	var tokens []string
	for token, buys := range d.buys {
		distinct := make(map[string]bool)
		for _, b := range buys {
			if b.at >= cutoff {
				distinct[b.wallet] = true
			}
		}
		if len(distinct) >= temporalMinWallets {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens
}
