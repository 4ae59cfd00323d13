package trust

import "trade-sentinel/internal/domain"

// tierBand holds the minimum stats a wallet must sustain for a tier.
type tierBand struct {
	tier    domain.Tier
	minWins int64
	minWR   float64
	minPnL  float64
	minConf float64
}

// Bands are evaluated top down; a wallet gets the first band it clears.
var tierBands = []tierBand{
	{domain.TierS, 5, 0.70, 5000, 0.8},
	{domain.TierA, 3, 0.60, 1000, 0.6},
	{domain.TierB, 2, 0.50, 100, 0.4},
}

// recomputeTier assigns a tier from current stats. MOTHER is sticky:
// promotion is one-way and never revisited here.
func recomputeTier(w *domain.Wallet) domain.Tier {
	if w.Tier == domain.TierMother {
		return domain.TierMother
	}
	for _, b := range tierBands {
		if w.WinCount >= b.minWins && w.WinRate() >= b.minWR &&
			w.TotalPnL >= b.minPnL && w.Confidence >= b.minConf {
			return b.tier
		}
	}
	if w.WinCount == 0 && w.LossCount == 0 {
		return domain.TierUnknown
	}
	return domain.TierC
}

// downgradeTier lowers a wallet one tier when decay has pushed its
// confidence below the floor for its tier. Returns true if downgraded.
func downgradeTier(w *domain.Wallet) bool {
	switch {
	case w.Tier == domain.TierS && w.Confidence < 0.70:
		w.Tier = domain.TierA
	case w.Tier == domain.TierA && w.Confidence < 0.50:
		w.Tier = domain.TierB
	case w.Tier == domain.TierB && w.Confidence < 0.30:
		w.Tier = domain.TierC
	default:
		return false
	}
	return true
}
