package domain

import "fmt"

// Tier is a wallet reputation tier. Closed set; every consumption site
// must match exhaustively so an unknown tier can never default to allow.
type Tier string

const (
	TierS       Tier = "S"
	TierA       Tier = "A"
	TierB       Tier = "B"
	TierC       Tier = "C"
	TierUnknown Tier = "UNKNOWN"
	// TierMother marks a wallet that funded multiple independently winning
	// children across >= 2 distinct cycles. Promotion is one-way.
	TierMother Tier = "MOTHER"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierS, TierA, TierB, TierC, TierUnknown, TierMother:
		return true
	}
	return false
}

// Wallet is a tracked wallet with reputation data.
// Corresponds to the wallets table. Mutated only by the trust graph on
// reinforcement and decay; created on first observation; never deleted.
type Wallet struct {
	Address          string  // PRIMARY KEY, base58 address
	Tier             Tier    // S | A | B | C | UNKNOWN | MOTHER
	Confidence       float64 // in [0,1]
	WinCount         int64
	LossCount        int64
	TotalPnL         float64 // cumulative USD
	CEXFunded        bool    // funded by a known exchange hot wallet
	CEXSource        string  // exchange name when CEXFunded
	FirstSeen        int64   // Unix ms
	LastReinforcedAt int64   // Unix ms of last win reinforcement; 0 = never
	PromotedAt       int64   // Unix ms of MOTHER promotion; 0 = not promoted
}

// WinRate returns wins / (wins + losses), or 0 with no history.
func (w *Wallet) WinRate() float64 {
	total := w.WinCount + w.LossCount
	if total == 0 {
		return 0
	}
	return float64(w.WinCount) / float64(total)
}

// CheckIntegrity validates persisted invariants. A violation is an
// IntegrityError: trading for this wallet must halt until repaired.
func (w *Wallet) CheckIntegrity() error {
	if w.Confidence < 0 || w.Confidence > 1 {
		return &IntegrityError{
			Entity: "wallet",
			Key:    w.Address,
			Reason: fmt.Sprintf("confidence %v out of [0,1]", w.Confidence),
		}
	}
	if !w.Tier.Valid() {
		return &IntegrityError{
			Entity: "wallet",
			Key:    w.Address,
			Reason: fmt.Sprintf("unknown tier %q", w.Tier),
		}
	}
	if w.WinCount < 0 || w.LossCount < 0 {
		return &IntegrityError{
			Entity: "wallet",
			Key:    w.Address,
			Reason: "negative win/loss counter",
		}
	}
	return nil
}

// FundingEdge is an observed funding relationship between two wallets.
// Corresponds to the funding_edges table. Decays with a 60-day half-life
// and is pruned below the confidence floor.
type FundingEdge struct {
	Source         string  // funder address
	Target         string  // funded address
	Amount         float64 // native units transferred
	Timestamp      int64   // Unix ms of the funding transaction
	EdgeConfidence float64 // in [0,1]
}

// EdgeConfidenceFloor is the prune threshold for decayed edges.
const EdgeConfidenceFloor = 0.05

// CheckIntegrity validates persisted invariants on the edge.
func (e *FundingEdge) CheckIntegrity() error {
	if e.EdgeConfidence < 0 || e.EdgeConfidence > 1 {
		return &IntegrityError{
			Entity: "funding_edge",
			Key:    e.Source + "->" + e.Target,
			Reason: fmt.Sprintf("edge confidence %v out of [0,1]", e.EdgeConfidence),
		}
	}
	return nil
}
