package domain

// Predicted is the simulator's verdict on a signal before execution.
type Predicted string

const (
	PredictedPass  Predicted = "PASS"
	PredictedBlock Predicted = "BLOCK"
)

// TradeOutcome classifies the realized result of a signal.
type TradeOutcome string

const (
	OutcomeWin          TradeOutcome = "WIN"
	OutcomeRug          TradeOutcome = "RUG"           // ~100% loss
	OutcomeModestLoss   TradeOutcome = "MODEST_LOSS"   // 10-30% loss
	OutcomeMarginalLoss TradeOutcome = "MARGINAL_LOSS" // <10% loss
	OutcomeNeutral      TradeOutcome = "NEUTRAL"
)

// IsLoss reports whether the outcome counts as a loser for accuracy
// weighting.
func (o TradeOutcome) IsLoss() bool {
	switch o {
	case OutcomeRug, OutcomeModestLoss, OutcomeMarginalLoss:
		return true
	}
	return false
}

// LossWeight returns the severity weight used by the blocker-accuracy
// gate: rug 1.0, modest 0.5, marginal 0.25, otherwise 0.
func (o TradeOutcome) LossWeight() float64 {
	switch o {
	case OutcomeRug:
		return 1.0
	case OutcomeModestLoss:
		return 0.5
	case OutcomeMarginalLoss:
		return 0.25
	}
	return 0
}

// SimulatorSample is one predicted-vs-actual pair.
// Corresponds to the simulator_samples table.
type SimulatorSample struct {
	Predicted   Predicted    // PASS | BLOCK
	Actual      TradeOutcome // realized outcome
	WeightClass float64      // severity weight at record time
	RecordedAt  int64        // Unix ms
}

// ClassifyOutcome maps realized pnl and loss percentage to an outcome.
// lossPct is the fraction of the position lost (0.95 = 95%).
func ClassifyOutcome(pnl, lossPct float64) TradeOutcome {
	if pnl > 0 {
		return OutcomeWin
	}
	if pnl == 0 {
		return OutcomeNeutral
	}
	switch {
	case lossPct >= 0.90:
		return OutcomeRug
	case lossPct >= 0.10:
		return OutcomeModestLoss
	default:
		return OutcomeMarginalLoss
	}
}
