package domain

import "fmt"

// RiskMode is the system-wide risk mode. Closed set with exhaustive
// matching at every consumption site; an unknown mode never maps to allow.
type RiskMode string

const (
	RiskModeNormal              RiskMode = "NORMAL"
	RiskModeCapitalPreservation RiskMode = "CAPITAL_PRESERVATION"
	RiskModeKillSwitchFull      RiskMode = "KILL_SWITCH_FULL"
	RiskModeKillSwitchGraph     RiskMode = "KILL_SWITCH_GRAPH"
)

// Valid reports whether the mode is one of the known values.
func (m RiskMode) Valid() bool {
	switch m {
	case RiskModeNormal, RiskModeCapitalPreservation,
		RiskModeKillSwitchFull, RiskModeKillSwitchGraph:
		return true
	}
	return false
}

// Halted reports whether the mode disables all trading.
func (m RiskMode) Halted() bool {
	return m == RiskModeKillSwitchFull
}

// Phase is the capital growth phase selecting position-sizing limits.
// Valid phases are 1-4; anything else maps to the most conservative tier.
type Phase int

// RiskState is the persisted risk-machine state. Exactly one instance
// exists; it is mutated exclusively through the machine's transition
// functions and corresponds to the risk_state table.
type RiskState struct {
	Mode         RiskMode
	Capital      float64 // current capital, USD
	PeakCapital  float64 // all-time peak capital, USD
	Phase        Phase   // 0-4; 0 = undefined
	TradeCount   int64   // lifetime executed trades
	FirstTradeAt int64   // Unix ms of the first ever trade; 0 = none yet
	ModeSince    int64   // Unix ms the current mode became active

	// LastTradeAt and FirstWeekTrades back the early-trade limits, which
	// must survive a restart.
	LastTradeAt     int64 // Unix ms of the most recent trade; 0 = none yet
	FirstWeekTrades int64 // trades executed inside the first week

	// GraphObservationUntil is the Unix ms deadline before which no
	// resume is accepted after a graph kill switch, whatever mode the
	// machine has moved to since.
	GraphObservationUntil int64
}

// Drawdown returns (peak - current) / peak, or 0 with no peak.
func (s *RiskState) Drawdown() float64 {
	if s.PeakCapital <= 0 {
		return 0
	}
	return (s.PeakCapital - s.Capital) / s.PeakCapital
}

// CheckIntegrity validates persisted invariants on the risk state.
func (s *RiskState) CheckIntegrity() error {
	if !s.Mode.Valid() {
		return &IntegrityError{
			Entity: "risk_state",
			Key:    "singleton",
			Reason: fmt.Sprintf("unknown mode %q", s.Mode),
		}
	}
	if s.Capital < 0 || s.PeakCapital < 0 {
		return &IntegrityError{
			Entity: "risk_state",
			Key:    "singleton",
			Reason: "negative capital",
		}
	}
	if s.TradeCount < 0 || s.FirstWeekTrades < 0 {
		return &IntegrityError{
			Entity: "risk_state",
			Key:    "singleton",
			Reason: "negative trade count",
		}
	}
	return nil
}
