package risk

import "trade-sentinel/internal/domain"

// phaseLimits maps capital growth phase to (risk fraction, max position
// fraction). Unknown phases use the phase 1 limits.
type phaseLimit struct {
	riskPct        float64
	maxPositionPct float64
}

var phaseLimits = map[domain.Phase]phaseLimit{
	1: {0.02, 0.10},
	2: {0.025, 0.12},
	3: {0.03, 0.15},
	4: {0.035, 0.18},
}

const (
	capitalPreservationSizeFactor = 0.25
	earlyTradeSizeCap             = 0.03
)

// limitsForPhase resolves the sizing limits, falling back to the most
// conservative tier for undefined phases.
func limitsForPhase(p domain.Phase) phaseLimit {
	if l, ok := phaseLimits[p]; ok {
		return l
	}
	return phaseLimits[1]
}

// PositionSize computes the admitted position size in USD:
// min(capital*risk_pct/confidence, capital*max_position_pct), scaled
// down in CAPITAL_PRESERVATION and capped while the account is young.
// Non-positive confidence sizes to zero.
func (m *Machine) PositionSize(confidence float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return positionSize(&m.state, confidence)
}

func positionSize(st *domain.RiskState, confidence float64) float64 {
	if confidence <= 0 || st.Capital <= 0 {
		return 0
	}
	l := limitsForPhase(st.Phase)

	size := st.Capital * l.riskPct / confidence
	if limit := st.Capital * l.maxPositionPct; size > limit {
		size = limit
	}
	if st.Mode == domain.RiskModeCapitalPreservation {
		size *= capitalPreservationSizeFactor
	}
	if st.TradeCount < earlyTradeCount {
		if limit := st.Capital * earlyTradeSizeCap; size > limit {
			size = limit
		}
	}
	return size
}
